package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"adpulse/internal/gateway/imagegen"
	"adpulse/internal/gateway/notifier"
	"adpulse/internal/portal"
	"adpulse/internal/store"
)

func newPortalCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Reporting portal automation",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Log in to the reporting portal and download the System1 CSV export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmdContext(cmd)
			run := store.ReportRun{Kind: "portal-export", Input: e.cfg.Portal.URL, StartedAt: time.Now()}
			defer func() {
				run.FinishedAt = time.Now()
				if err != nil {
					run.Error = err.Error()
				}
				e.record(ctx, run)
			}()
			exp, err := portal.NewExporter(e.cfg.Portal)
			if err != nil {
				return err
			}
			path, err := exp.Export(ctx)
			if err != nil {
				return err
			}
			run.Outputs = []string{path}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("saved"), path)
			return nil
		},
	})
	return cmd
}

func newSlackCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slack",
		Short: "Slack notifications",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "send <text...>",
		Short: "Post a message to the configured channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := notifier.FromConfig(e.cfg.Slack)
			if _, ok := n.(notifier.Nop); ok {
				return fmt.Errorf("slack is disabled (set slack.enabled, slack.token and slack.channel)")
			}
			if err := n.SendText(cmdContext(cmd), strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("sent"))
			return nil
		},
	})
	return cmd
}

func newImageCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Ad creative image generation",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate <prompt...>",
		Short: "Generate an image from a prompt and save it under imagegen.out_dir",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmdContext(cmd)
			prompt := strings.Join(args, " ")
			run := store.ReportRun{Kind: "image-generate", Input: prompt, StartedAt: time.Now()}
			defer func() {
				run.FinishedAt = time.Now()
				if err != nil {
					run.Error = err.Error()
				}
				e.record(ctx, run)
			}()
			res, err := imagegen.New(e.cfg.ImageGen).Generate(ctx, prompt)
			if err != nil {
				return err
			}
			run.Outputs, run.Rows = res.Files, len(res.Files)
			if res.Text != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			}
			for _, f := range res.Files {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("saved"), f)
			}
			return nil
		},
	})
	return cmd
}
