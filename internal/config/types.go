package config

import "strings"

// Config is the root configuration for adpulse.
type Config struct {
	App      AppConfig      `toml:"app"`
	Data     DataConfig     `toml:"data"`
	LLM      LLMConfig      `toml:"llm"`
	Intent   IntentConfig   `toml:"intent"`
	Slack    SlackConfig    `toml:"slack"`
	ImageGen ImageGenConfig `toml:"imagegen"`
	Portal   PortalConfig   `toml:"portal"`
	Extract  ExtractConfig  `toml:"extract"`
	Report   ReportConfig   `toml:"report"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogJSON   bool   `toml:"log_json"`
	LogPath   string `toml:"log_path"`
	LLMLog    string `toml:"llm_log_path"`
	LLMDump   bool   `toml:"llm_dump_payload"`
	HTTPAddr  string `toml:"http_addr"`
	CORSAllow string `toml:"cors_allow_origin"`
}

// DataConfig locates input CSVs and every file a run writes.
type DataConfig struct {
	InputDir   string `toml:"input_dir"`
	RunsDir    string `toml:"runs_dir"`
	ReportsDir string `toml:"reports_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// LLMConfig selects the completion gateway used for chat explanations.
type LLMConfig struct {
	Provider       string            `toml:"provider"` // "openai" | "anthropic"
	BaseURL        string            `toml:"base_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	MaxRetries     int               `toml:"max_retries"`
	MaxTokens      int               `toml:"max_tokens"`
	SystemPrompt   string            `toml:"system_prompt"`
	Headers        map[string]string `toml:"headers"`
}

type IntentConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type SlackConfig struct {
	Enabled    bool   `toml:"enabled"`
	Token      string `toml:"token"`
	Channel    string `toml:"channel"`
	BaseURL    string `toml:"base_url"`
	MaxRetries int    `toml:"max_retries"`
}

type ImageGenConfig struct {
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	MaxRetries int    `toml:"max_retries"`
	OutDir     string `toml:"out_dir"`
}

// PortalConfig describes the reporting portal scraped for System1 exports.
// Selectors are CSS selectors; empty login selectors skip the login step.
type PortalConfig struct {
	URL            string `toml:"url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	UserSelector   string `toml:"user_selector"`
	PassSelector   string `toml:"pass_selector"`
	SubmitSelector string `toml:"submit_selector"`
	ReadySelector  string `toml:"ready_selector"`
	ExportSelector string `toml:"export_selector"`
	DownloadDir    string `toml:"download_dir"`
	ClickRetries   int    `toml:"click_retries"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Headless       bool   `toml:"headless"`
}

type ExtractConfig struct {
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	Concurrency       int     `toml:"concurrency"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	RulesPath         string  `toml:"rules_path"`
}

type ReportConfig struct {
	TopN int  `toml:"top_n"`
	PNG  bool `toml:"png"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}
