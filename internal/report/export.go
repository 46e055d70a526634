package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"adpulse/internal/logger"
)

// Outputs lists the files written for one report.
type Outputs struct {
	CSV  string `json:"csv,omitempty"`
	JSON string `json:"json,omitempty"`
	HTML string `json:"html,omitempty"`
	PNG  string `json:"png,omitempty"`
}

// Paths returns the non-empty output paths.
func (o Outputs) Paths() []string {
	var out []string
	for _, p := range []string{o.CSV, o.JSON, o.HTML, o.PNG} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type ExportOptions struct {
	CSV  bool
	JSON bool
	HTML bool
	PNG  bool
}

// PNGRenderer turns an HTML page into an image.
type PNGRenderer interface {
	RenderPNG(ctx context.Context, html []byte, width, height int) ([]byte, error)
}

// Exporter writes CSV/JSON under RunsDir and HTML/PNG under ReportsDir.
type Exporter struct {
	RunsDir    string
	ReportsDir string
	Renderer   PNGRenderer
	Now        func() time.Time
}

func (e *Exporter) Export(ctx context.Context, r *Report, opts ExportOptions) (Outputs, error) {
	var out Outputs
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	base := fmt.Sprintf("%s-%s", Slug(r.Name), now.Format("20060102-150405"))
	if opts.CSV {
		path := filepath.Join(e.RunsDir, base+".csv")
		if err := writeFile(path, func(w io.Writer) error { return WriteCSV(w, r) }); err != nil {
			return out, err
		}
		out.CSV = path
	}
	if opts.JSON {
		path := filepath.Join(e.RunsDir, base+".json")
		if err := writeFile(path, func(w io.Writer) error { return WriteJSON(w, r) }); err != nil {
			return out, err
		}
		out.JSON = path
	}
	if !opts.HTML && !opts.PNG {
		return out, nil
	}
	html, err := BuildHTML(r)
	if err != nil {
		return out, err
	}
	if opts.HTML {
		path := filepath.Join(e.ReportsDir, base+".html")
		if err := writeFile(path, func(w io.Writer) error { _, err := w.Write(html); return err }); err != nil {
			return out, err
		}
		out.HTML = path
	}
	if opts.PNG {
		if e.Renderer == nil {
			return out, fmt.Errorf("png export requested but no renderer configured")
		}
		img, err := e.Renderer.RenderPNG(ctx, html, chartWidthPx, chartHeightPx+80)
		if err != nil {
			return out, fmt.Errorf("render png: %w", err)
		}
		path := filepath.Join(e.ReportsDir, base+".png")
		if err := writeFile(path, func(w io.Writer) error { _, err := w.Write(img); return err }); err != nil {
			return out, err
		}
		out.PNG = path
	}
	for _, p := range out.Paths() {
		logger.Infof("wrote %s", p)
	}
	return out, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteCSV writes the header labels by key and raw cell values.
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c.Key
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range r.Rows {
		rec := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			rec[i] = RawCell(c.Kind, row[c.Key])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
