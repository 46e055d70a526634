package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"adpulse/internal/csvio"
	"adpulse/internal/engine"
	"adpulse/internal/gateway/notifier"
	"adpulse/internal/logger"
	"adpulse/internal/report"
	"adpulse/internal/store"
)

// reportFlags are shared by every aggregation command.
type reportFlags struct {
	file   string
	dir    string
	top    int
	csv    bool
	json   bool
	html   bool
	png    bool
	notify bool
	watch  bool
}

func (f *reportFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.file, "file", "", "input CSV (default: newest matching CSV in --dir)")
	fl.StringVar(&f.dir, "dir", "", "input directory (default: data.input_dir)")
	fl.IntVar(&f.top, "top", 0, "row limit (default: report.top_n, -1 for all)")
	fl.BoolVar(&f.csv, "csv", false, "write CSV under runs_dir")
	fl.BoolVar(&f.json, "json", false, "write JSON under runs_dir")
	fl.BoolVar(&f.html, "html", false, "write an HTML chart under reports_dir")
	fl.BoolVar(&f.png, "png", false, "render the HTML chart to PNG")
	fl.BoolVar(&f.notify, "notify", false, "post a summary to Slack")
	fl.BoolVar(&f.watch, "watch", false, "rerun when a new CSV lands in --dir")
}

func (f *reportFlags) inputDir(e *env) string {
	if f.dir != "" {
		return f.dir
	}
	return e.cfg.Data.InputDir
}

func (f *reportFlags) limit(e *env) int {
	switch {
	case f.top < 0:
		return 0
	case f.top > 0:
		return f.top
	default:
		return e.cfg.Report.TopN
	}
}

// resolve picks --file, or the newest CSV with prefix in the input dir.
func (f *reportFlags) resolve(e *env, explicit, prefix string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return csvio.LatestCSV(f.inputDir(e), prefix)
}

// buildFunc produces a report from a fresh analytical database.
type buildFunc func(ctx context.Context, db *engine.DB) (*report.Report, []string, error)

// runReport builds, prints, exports, notifies and records one report, and
// keeps doing so on new CSVs when --watch is set.
func runReport(cmd *cobra.Command, e *env, f *reportFlags, kind string, params map[string]string, build buildFunc) error {
	ctx := cmdContext(cmd)
	once := func() error {
		return runOnce(ctx, cmd, e, f, kind, params, build)
	}
	if !f.watch {
		return once()
	}
	if err := once(); err != nil {
		logger.Errorf("%s: %v", kind, err)
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchDir(ctx, f.inputDir(e), func(path string) {
		logger.Infof("%s: new input %s", kind, path)
		if err := once(); err != nil {
			logger.Errorf("%s: %v", kind, err)
		}
	})
}

func runOnce(ctx context.Context, cmd *cobra.Command, e *env, f *reportFlags, kind string, params map[string]string, build buildFunc) (err error) {
	run := store.ReportRun{Kind: kind, Params: params, StartedAt: time.Now()}
	defer func() {
		run.FinishedAt = time.Now()
		if err != nil {
			run.Error = err.Error()
		}
		e.record(ctx, run)
	}()

	db, err := engine.Open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	r, inputs, err := build(ctx, db)
	run.Input = strings.Join(inputs, ",")
	if err != nil {
		return err
	}
	run.Rows = len(r.Rows)
	if err := report.RenderText(cmd.OutOrStdout(), r); err != nil {
		return err
	}

	exp := &report.Exporter{RunsDir: e.cfg.Data.RunsDir, ReportsDir: e.cfg.Data.ReportsDir}
	opts := report.ExportOptions{CSV: f.csv, JSON: f.json, HTML: f.html, PNG: f.png || (f.html && e.cfg.Report.PNG)}
	if opts.PNG {
		exp.Renderer = report.ChromeRenderer{Timeout: 60 * time.Second}
	}
	outs, err := exp.Export(ctx, r, opts)
	run.Outputs = outs.Paths()
	if err != nil {
		return err
	}
	if f.notify {
		if err := notifyReport(ctx, e, r); err != nil {
			return fmt.Errorf("slack: %w", err)
		}
	}
	return nil
}

func notifyReport(ctx context.Context, e *env, r *report.Report) error {
	n := notifier.FromConfig(e.cfg.Slack)
	if _, ok := n.(notifier.Nop); ok {
		logger.Warnf("--notify set but slack is disabled")
		return nil
	}
	msg := notifier.Digest{
		Icon:     ":bar_chart:",
		Title:    r.Title,
		Sections: []notifier.Section{{Lines: strings.Split(report.Summary(r, 5), "\n")}},
		Footer:   r.Source,
		At:       time.Now(),
	}
	return n.SendText(ctx, msg.Markdown())
}

func (e *env) record(ctx context.Context, run store.ReportRun) {
	ledger, err := e.runLedger()
	if err != nil {
		logger.Warnf("ledger unavailable: %v", err)
		return
	}
	if err := ledger.RecordRun(ctx, run); err != nil {
		logger.Warnf("record run %s: %v", run.Kind, err)
	}
}

// watchDir calls fn for every CSV created or rewritten in dir. Bursts of
// events for one file are collapsed with a short debounce.
func watchDir(ctx context.Context, dir string, fn func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Infof("watching %s for new CSV files", dir)

	const debounce = 750 * time.Millisecond
	var (
		pending string
		timer   = time.NewTimer(time.Hour)
	)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isCSVEvent(ev) {
				continue
			}
			pending = ev.Name
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watch %s: %v", dir, err)
		case <-timer.C:
			if pending != "" {
				fn(pending)
				pending = ""
			}
		}
	}
}

func isCSVEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return strings.EqualFold(filepath.Ext(ev.Name), ".csv")
}

func params(kv ...string) map[string]string {
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" && kv[i+1] != "0" && kv[i+1] != "false" {
			out[kv[i]] = kv[i+1]
		}
	}
	return out
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
