package config

import "strings"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":8787"
	defaultAppLLMLogPath   = "logs/llm.log"
	defaultCORSAllow       = "*"
	defaultInputDir        = "data"
	defaultRunsDir         = "runs"
	defaultReportsDir      = "reports"
	defaultLedgerPath      = "runs/ledger.db"
	defaultLLMProvider     = "openai"
	defaultLLMBaseURL      = "https://api.openai.com/v1"
	defaultLLMModel        = "gpt-4o-mini"
	defaultLLMTimeout      = 60
	defaultLLMRetries      = 2
	defaultLLMMaxTokens    = 1024
	defaultIntentBaseURL   = "http://localhost:8000"
	defaultIntentTimeout   = 30
	defaultSlackBaseURL    = "https://slack.com/api"
	defaultSlackRetries    = 3
	defaultImageBaseURL    = "https://generativelanguage.googleapis.com"
	defaultImageModel      = "gemini-2.5-flash-image"
	defaultImageRetries    = 4
	defaultImageOutDir     = "runs/images"
	defaultPortalDownloads = "data"
	defaultPortalRetries   = 3
	defaultPortalTimeout   = 120
	defaultExtractTimeout  = 45
	defaultExtractWorkers  = 3
	defaultExtractRPS      = 2
	defaultReportTopN      = 25

	defaultSystemPrompt = "You are a marketing analytics assistant. Explain the data in two or three short paragraphs. Mention the largest and smallest values and anything unusual. Do not invent numbers."
)

// filler writes a default into a field unless the key was set explicitly
// or the field already carries a value.
type filler keySet

func (f filler) str(key string, target *string, def string) {
	if !keySet(f).isSet(key) && strings.TrimSpace(*target) == "" {
		*target = def
	}
}

func (f filler) num(key string, target *int, def int) {
	if !keySet(f).isSet(key) && *target <= 0 {
		*target = def
	}
}

func (f filler) rate(key string, target *float64, def float64) {
	if !keySet(f).isSet(key) && *target <= 0 {
		*target = def
	}
}

// flag only applies when the key is absent; a bool has no "empty" value.
func (f filler) flag(key string, target *bool, def bool) {
	if !keySet(f).isSet(key) {
		*target = def
	}
}

func (c *Config) applyDefaults(keys keySet) {
	f := filler(keys)

	f.str("app.env", &c.App.Env, defaultAppEnv)
	f.str("app.log_level", &c.App.LogLevel, defaultAppLogLevel)
	f.str("app.http_addr", &c.App.HTTPAddr, defaultAppHTTPAddr)
	f.str("app.llm_log_path", &c.App.LLMLog, defaultAppLLMLogPath)
	f.str("app.cors_allow_origin", &c.App.CORSAllow, defaultCORSAllow)

	f.str("data.input_dir", &c.Data.InputDir, defaultInputDir)
	f.str("data.runs_dir", &c.Data.RunsDir, defaultRunsDir)
	f.str("data.reports_dir", &c.Data.ReportsDir, defaultReportsDir)
	f.str("data.ledger_path", &c.Data.LedgerPath, defaultLedgerPath)

	llm := &c.LLM
	llm.Provider = strings.ToLower(strings.TrimSpace(llm.Provider))
	f.str("llm.provider", &llm.Provider, defaultLLMProvider)
	f.str("llm.model", &llm.Model, defaultLLMModel)
	f.str("llm.system_prompt", &llm.SystemPrompt, defaultSystemPrompt)
	f.num("llm.timeout_seconds", &llm.TimeoutSeconds, defaultLLMTimeout)
	f.num("llm.max_retries", &llm.MaxRetries, defaultLLMRetries)
	f.num("llm.max_tokens", &llm.MaxTokens, defaultLLMMaxTokens)
	// The anthropic SDK carries its own default endpoint.
	if llm.Provider == defaultLLMProvider {
		f.str("llm.base_url", &llm.BaseURL, defaultLLMBaseURL)
	}

	f.str("intent.base_url", &c.Intent.BaseURL, defaultIntentBaseURL)
	f.num("intent.timeout_seconds", &c.Intent.TimeoutSeconds, defaultIntentTimeout)

	f.str("slack.base_url", &c.Slack.BaseURL, defaultSlackBaseURL)
	f.num("slack.max_retries", &c.Slack.MaxRetries, defaultSlackRetries)

	f.str("imagegen.base_url", &c.ImageGen.BaseURL, defaultImageBaseURL)
	f.str("imagegen.model", &c.ImageGen.Model, defaultImageModel)
	f.str("imagegen.out_dir", &c.ImageGen.OutDir, defaultImageOutDir)
	f.num("imagegen.max_retries", &c.ImageGen.MaxRetries, defaultImageRetries)

	f.str("portal.download_dir", &c.Portal.DownloadDir, defaultPortalDownloads)
	f.num("portal.click_retries", &c.Portal.ClickRetries, defaultPortalRetries)
	f.num("portal.timeout_seconds", &c.Portal.TimeoutSeconds, defaultPortalTimeout)
	f.flag("portal.headless", &c.Portal.Headless, true)

	f.num("extract.timeout_seconds", &c.Extract.TimeoutSeconds, defaultExtractTimeout)
	f.num("extract.concurrency", &c.Extract.Concurrency, defaultExtractWorkers)
	f.rate("extract.requests_per_second", &c.Extract.RequestsPerSecond, defaultExtractRPS)

	f.num("report.top_n", &c.Report.TopN, defaultReportTopN)
}
