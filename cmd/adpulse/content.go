package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"adpulse/internal/detect"
	"adpulse/internal/extract"
	"adpulse/internal/logger"
	"adpulse/internal/store"
)

type detectOutput struct {
	detect.AIContentSignals
	Classification detect.Classification `json:"classification"`
}

func newDetectCmd(e *env) *cobra.Command {
	var (
		file       string
		categories bool
	)
	cmd := &cobra.Command{
		Use:   "detect [text]",
		Short: "Score text for AI-writing signals and classify its vertical",
		Long:  "Reads the text from the argument, --file, or stdin when neither is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if categories {
				cl, err := detect.NewClassifier(e.cfg.Extract.RulesPath)
				if err != nil {
					return err
				}
				for _, name := range cl.Categories() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			var raw []byte
			var err error
			switch {
			case len(args) == 1:
				raw = []byte(args[0])
			case file != "":
				raw, err = os.ReadFile(file)
			default:
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			text := string(raw)
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("no text to analyze")
			}
			cl, err := detect.NewClassifier(e.cfg.Extract.RulesPath)
			if err != nil {
				return err
			}
			out := detectOutput{AIContentSignals: detect.DetectAIContentSignals(text), Classification: cl.Classify(text)}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "read text from a file")
	cmd.Flags().BoolVar(&categories, "categories", false, "list the classifier's categories and exit")
	return cmd
}

func newExtractCmd(e *env) *cobra.Command {
	var (
		urlsFile string
		save     bool
		headful  bool
	)
	cmd := &cobra.Command{
		Use:   "extract [url...]",
		Short: "Load article pages in a headless browser, extract text and score it",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmdContext(cmd)
			urls := append([]string(nil), args...)
			if urlsFile != "" {
				more, err := readLines(urlsFile)
				if err != nil {
					return err
				}
				urls = append(urls, more...)
			}
			if len(urls) == 0 {
				return fmt.Errorf("no URLs given")
			}
			run := store.ReportRun{Kind: "extract", Input: strings.Join(urls, ","), StartedAt: time.Now()}
			defer func() {
				run.FinishedAt = time.Now()
				if err != nil {
					run.Error = err.Error()
				}
				e.record(ctx, run)
			}()

			cl, err := detect.NewClassifier(e.cfg.Extract.RulesPath)
			if err != nil {
				return err
			}
			browser := extract.NewBrowser(ctx, !headful, time.Duration(e.cfg.Extract.TimeoutSeconds)*time.Second)
			defer browser.Close()
			x := extract.NewExtractor(browser, cl, e.cfg.Extract.Concurrency, e.cfg.Extract.RequestsPerSecond)
			results, err := x.ExtractAll(ctx, urls)
			if err != nil {
				return err
			}
			run.Rows = len(results)

			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := 0
			for _, r := range results {
				if r.Err != "" {
					failed++
				}
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			if save {
				path := filepath.Join(e.cfg.Data.RunsDir, fmt.Sprintf("extract-%s.json", time.Now().Format("20060102-150405")))
				if err := writeJSONFile(path, results); err != nil {
					return err
				}
				run.Outputs = []string{path}
				logger.Infof("wrote %s", path)
			}
			if failed == len(results) {
				return fmt.Errorf("all %d URLs failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&urlsFile, "urls", "", "file with one URL per line")
	cmd.Flags().BoolVar(&save, "json", false, "also write results under runs_dir")
	cmd.Flags().BoolVar(&headful, "show-browser", false, "run Chrome with a visible window")
	return cmd
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
