package report

import (
	"bytes"
	"fmt"
	stdhtml "html"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"adpulse/internal/pkg/convert"
)

const (
	chartWidthPx  = 1400
	chartHeightPx = 640
)

// BuildHTML renders the report chart (if any) followed by the data table
// into a standalone go-echarts page.
func BuildHTML(r *Report) ([]byte, error) {
	page := components.NewPage()
	page.PageTitle = r.Title
	if r.Chart != nil && len(r.Rows) > 0 {
		chart, err := buildChart(r)
		if err != nil {
			return nil, err
		}
		page.AddCharts(chart)
	}
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return appendTable(buf.Bytes(), r), nil
}

func buildChart(r *Report) (components.Charter, error) {
	cs := r.Chart
	if len(cs.Series) == 0 {
		return nil, fmt.Errorf("chart for %s has no series", r.Name)
	}
	rows := r.Rows
	if cs.Type != "line" && cs.Limit > 0 && len(rows) > cs.Limit {
		rows = rows[:cs.Limit]
	}
	x := make([]string, len(rows))
	for i, row := range rows {
		x[i] = convert.ToString(row[cs.XKey])
	}
	init := opts.Initialization{
		PageTitle: r.Title,
		Width:     fmt.Sprintf("%dpx", chartWidthPx),
		Height:    fmt.Sprintf("%dpx", chartHeightPx),
	}
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: r.Title, Subtitle: r.Source}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
	}
	switch cs.Type {
	case "line":
		line := charts.NewLine()
		line.SetGlobalOptions(append(global,
			charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		)...)
		line.SetXAxis(x)
		for _, key := range cs.Series {
			data := make([]opts.LineData, len(rows))
			for i, row := range rows {
				data[i] = opts.LineData{Value: convert.ToFloat64(row[key])}
			}
			line.AddSeries(seriesLabel(r, key), data)
		}
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
		return line, nil
	default:
		bar := charts.NewBar()
		bar.SetGlobalOptions(append(global,
			charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30, Interval: "0"}}),
		)...)
		bar.SetXAxis(x)
		for _, key := range cs.Series {
			data := make([]opts.BarData, len(rows))
			for i, row := range rows {
				data[i] = opts.BarData{Value: convert.ToFloat64(row[key])}
			}
			bar.AddSeries(seriesLabel(r, key), data)
		}
		return bar, nil
	}
}

func seriesLabel(r *Report, key string) string {
	if c, ok := r.Column(key); ok && c.Label != "" {
		return c.Label
	}
	return key
}

func appendTable(page []byte, r *Report) []byte {
	var b bytes.Buffer
	b.WriteString(`<table style="border-collapse:collapse;margin:24px;font:13px sans-serif"><thead><tr>`)
	for _, c := range r.Columns {
		fmt.Fprintf(&b, `<th style="border:1px solid #ccc;padding:4px 8px">%s</th>`, escape(c.Label))
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range r.Rows {
		b.WriteString("<tr>")
		for _, c := range r.Columns {
			align := "right"
			if c.Kind == KindText {
				align = "left"
			}
			fmt.Fprintf(&b, `<td style="border:1px solid #eee;padding:4px 8px;text-align:%s">%s</td>`, align, escape(FormatCell(c.Kind, row[c.Key])))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	idx := bytes.LastIndex(page, []byte("</body>"))
	if idx < 0 {
		return append(page, b.Bytes()...)
	}
	out := make([]byte, 0, len(page)+b.Len())
	out = append(out, page[:idx]...)
	out = append(out, b.Bytes()...)
	return append(out, page[idx:]...)
}

func escape(s string) string {
	return stdhtml.EscapeString(s)
}
