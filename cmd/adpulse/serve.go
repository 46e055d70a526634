package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"adpulse/internal/app"
	"adpulse/internal/pkg/text"
	"adpulse/internal/report"
)

func newServeCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analytics chat and detector HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				e.cfg.App.HTTPAddr = addr
			}
			gin.SetMode(gin.ReleaseMode)
			a, err := app.NewApp(e.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: app.http_addr)")
	return cmd
}

func newRunsCmd(e *env) *cobra.Command {
	var (
		kind  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := e.runLedger()
			if err != nil {
				return err
			}
			runs, err := ledger.ListRuns(cmdContext(cmd), kind, limit)
			if err != nil {
				return err
			}
			r := &report.Report{
				Name:  "runs",
				Title: "Recorded runs",
				Columns: []report.Column{
					{Key: "started", Label: "Started", Kind: report.KindText},
					{Key: "kind", Label: "Kind", Kind: report.KindText},
					{Key: "status", Label: "Status", Kind: report.KindText},
					{Key: "rows", Label: "Rows", Kind: report.KindInt},
					{Key: "took", Label: "Took", Kind: report.KindText},
					{Key: "detail", Label: "Input / error", Kind: report.KindText},
				},
			}
			for _, run := range runs {
				detail := run.Input
				if run.Error != "" {
					detail = run.Error
				}
				r.Rows = append(r.Rows, map[string]any{
					"started": run.StartedAt.Local().Format(time.DateTime),
					"kind":    run.Kind,
					"status":  run.Status,
					"rows":    run.Rows,
					"took":    run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
					"detail":  text.Truncate(detail, 60),
				})
			}
			return report.RenderText(cmd.OutOrStdout(), r)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only runs of this kind")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs")
	return cmd
}
