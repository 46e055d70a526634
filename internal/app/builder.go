package app

import (
	"fmt"
	"strings"

	"adpulse/internal/chat"
	"adpulse/internal/config"
	"adpulse/internal/detect"
	"adpulse/internal/gateway/intent"
	"adpulse/internal/gateway/llm"
	"adpulse/internal/logger"
	"adpulse/internal/store"
	"adpulse/internal/store/gormstore"
	apihttp "adpulse/internal/transport/http/api"

	"github.com/google/wire"
)

var providerSet = wire.NewSet(
	provideLedger,
	wire.Bind(new(store.RunLedger), new(*gormstore.GormStore)),
	wire.Bind(new(store.ChatHistory), new(*gormstore.GormStore)),
	provideLLM,
	provideIntent,
	provideClassifier,
	provideChat,
	provideServer,
	provideSummary,
	provideApp,
)

func provideLedger(cfg *config.Config) (*gormstore.GormStore, func(), error) {
	st, err := gormstore.NewGormStore(cfg.Data.LedgerPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Warnf("close ledger: %v", err)
		}
	}, nil
}

// provideLLM returns a nil client when no key is configured; chat then
// answers with the intent summary only.
func provideLLM(cfg *config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Warnf("llm.api_key is empty, chat explanations disabled")
		return nil, nil
	}
	return llm.New(cfg.LLM)
}

func provideIntent(cfg *config.Config) chat.Classifier {
	return intent.New(cfg.Intent)
}

func provideClassifier(cfg *config.Config) (*detect.Classifier, error) {
	return detect.NewClassifier(cfg.Extract.RulesPath)
}

func provideChat(cfg *config.Config, in chat.Classifier, client llm.Client, history store.ChatHistory) *chat.Service {
	return &chat.Service{Intent: in, LLM: client, History: history, SystemPrompt: cfg.LLM.SystemPrompt}
}

func provideServer(cfg *config.Config, svc *chat.Service, cl *detect.Classifier, runs store.RunLedger) (*apihttp.Server, error) {
	return apihttp.NewServer(apihttp.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		Chat:       svc,
		Classifier: cl,
		Runs:       runs,
		ReportsDir: cfg.Data.ReportsDir,
		CORSAllow:  cfg.App.CORSAllow,
	})
}

func provideApp(cfg *config.Config, srv *apihttp.Server, summary *StartupSummary) *App {
	return &App{cfg: cfg, server: srv, Summary: summary}
}
