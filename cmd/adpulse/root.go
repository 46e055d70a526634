package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"adpulse/internal/config"
	"adpulse/internal/logger"
	"adpulse/internal/store/gormstore"
)

const defaultConfigPath = "configs/config.yaml"

// env is shared by every subcommand. The ledger opens on first use.
type env struct {
	configPath string
	cfg        *config.Config
	ledger     *gormstore.GormStore
	closers    []io.Closer
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "adpulse",
		Short:         "Marketing analytics reports for System1 and Facebook traffic",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}
	path := os.Getenv("ADPULSE_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", path, "config file (YAML)")

	root.AddCommand(
		newS1Cmd(e),
		newFBCmd(e),
		newMarginCmd(e),
		newDetectCmd(e),
		newExtractCmd(e),
		newPortalCmd(e),
		newSlackCmd(e),
		newImageCmd(e),
		newRunsCmd(e),
		newServeCmd(e),
	)
	return root
}

func (e *env) load() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	e.cfg = cfg
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetJSON(cfg.App.LogJSON)
	if f, err := openLog(cfg.App.LogPath); err != nil {
		return err
	} else if f != nil {
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
		e.closers = append(e.closers, f)
	}
	logger.SetLLMWriter(nil)
	if cfg.App.LLMDump {
		f, err := openLog(cfg.App.LLMLog)
		if err != nil {
			return err
		}
		if f != nil {
			logger.SetLLMWriter(f)
			e.closers = append(e.closers, f)
		}
	}
	logger.EnableLLMPayloadDump(cfg.App.LLMDump)
	logger.Debugf("config loaded (env=%s, file=%s)", cfg.App.Env, e.configPath)
	return nil
}

func (e *env) close() {
	if e.ledger != nil {
		_ = e.ledger.Close()
		e.ledger = nil
	}
	for _, c := range e.closers {
		_ = c.Close()
	}
	e.closers = nil
}

func (e *env) runLedger() (*gormstore.GormStore, error) {
	if e.ledger != nil {
		return e.ledger, nil
	}
	st, err := gormstore.NewGormStore(e.cfg.Data.LedgerPath)
	if err != nil {
		return nil, err
	}
	e.ledger = st
	return st, nil
}

func openLog(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
