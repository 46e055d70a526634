package app

import (
	"fmt"
	"strings"

	"adpulse/internal/config"
	"adpulse/internal/gateway/llm"
	"adpulse/internal/logger"
)

// StartupSummary is logged once before the server starts.
type StartupSummary struct {
	Addr       string
	LLM        string
	IntentURL  string
	LedgerPath string
	ReportsDir string
	Slack      bool
}

func provideSummary(cfg *config.Config, client llm.Client) *StartupSummary {
	s := &StartupSummary{
		Addr:       cfg.App.HTTPAddr,
		LLM:        "disabled",
		IntentURL:  cfg.Intent.BaseURL,
		LedgerPath: cfg.Data.LedgerPath,
		ReportsDir: cfg.Data.ReportsDir,
		Slack:      cfg.Slack.Enabled,
	}
	if client != nil {
		s.LLM = fmt.Sprintf("%s (%s)", client.Name(), orDash(cfg.LLM.Model))
	}
	return s
}

func (s *StartupSummary) String() string {
	lines := []string{
		"adpulse serve",
		"  listen:  " + orDash(s.Addr),
		"  llm:     " + s.LLM,
		"  intent:  " + orDash(s.IntentURL),
		"  ledger:  " + orDash(s.LedgerPath),
		"  reports: " + orDash(s.ReportsDir),
		fmt.Sprintf("  slack:   %t", s.Slack),
	}
	return strings.Join(lines, "\n")
}

func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
