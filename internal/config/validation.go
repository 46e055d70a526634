package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.LLM.validate(); err != nil {
		return err
	}
	if err := c.Slack.validate(); err != nil {
		return err
	}
	if err := c.Portal.validate(); err != nil {
		return err
	}
	if err := c.Extract.validate(); err != nil {
		return err
	}
	if c.Report.TopN < 0 {
		return fmt.Errorf("report.top_n must be >= 0")
	}
	return nil
}

func (l *LLMConfig) validate() error {
	switch l.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", l.Provider)
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be >= 0")
	}
	return nil
}

func (s *SlackConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if strings.TrimSpace(s.Token) == "" {
		return fmt.Errorf("slack.enabled requires slack.token")
	}
	if strings.TrimSpace(s.Channel) == "" {
		return fmt.Errorf("slack.enabled requires slack.channel")
	}
	return nil
}

func (p *PortalConfig) validate() error {
	if p.ClickRetries < 1 {
		return fmt.Errorf("portal.click_retries must be >= 1")
	}
	login := []string{p.UserSelector, p.PassSelector, p.SubmitSelector}
	set := 0
	for _, sel := range login {
		if strings.TrimSpace(sel) != "" {
			set++
		}
	}
	if set != 0 && set != len(login) {
		return fmt.Errorf("portal login needs user_selector, pass_selector and submit_selector together")
	}
	return nil
}

func (e *ExtractConfig) validate() error {
	if e.Concurrency < 1 {
		return fmt.Errorf("extract.concurrency must be >= 1")
	}
	return nil
}

// Ready reports whether the portal section has enough to attempt an export.
func (p PortalConfig) Ready() error {
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("portal.url (PORTAL_URL) is required")
	}
	if strings.TrimSpace(p.ExportSelector) == "" {
		return fmt.Errorf("portal.export_selector (PORTAL_EXPORT_SELECTOR) is required")
	}
	return nil
}
