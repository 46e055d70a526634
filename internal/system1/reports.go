package system1

import (
	"context"
	"fmt"
	"sort"

	talib "github.com/markcheno/go-talib"

	"adpulse/internal/engine"
	"adpulse/internal/pkg/convert"
	"adpulse/internal/pkg/money"
	"adpulse/internal/report"
)

// Options filter and trim report rows. Zero values disable a filter.
type Options struct {
	Campaign    string
	MinClicks   float64
	MinSearches float64
	Top         int
	TrendWindow int
}

func limit(top int) int {
	if top <= 0 {
		return -1
	}
	return top
}

var metricColumns = []report.Column{
	{Key: "searches", Label: "Searches", Kind: report.KindInt},
	{Key: "clicks", Label: "Clicks", Kind: report.KindInt},
	{Key: "revenue", Label: "Revenue", Kind: report.KindCurrency},
	{Key: "rpc", Label: "RPC", Kind: report.KindRatio},
	{Key: "rps", Label: "RPS", Kind: report.KindRatio},
}

// addRatios derives RPC and RPS on each row; zero denominators give 0.
func addRatios(rows []engine.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := map[string]any(r)
		m["revenue"] = money.Round(r.Float("revenue"), 2)
		m["rpc"] = money.Ratio(r.Float("revenue"), r.Float("clicks"), 4)
		m["rps"] = money.Ratio(r.Float("revenue"), r.Float("searches"), 4)
		out[i] = m
	}
	return out
}

func totals(rows []map[string]any) map[string]any {
	var searches, clicks, revenue float64
	for _, r := range rows {
		searches += asFloat(r["searches"])
		clicks += asFloat(r["clicks"])
		revenue += asFloat(r["revenue"])
	}
	return map[string]any{
		"searches": searches,
		"clicks":   clicks,
		"revenue":  money.Round(revenue, 2),
		"rpc":      money.Ratio(revenue, clicks, 4),
		"rps":      money.Ratio(revenue, searches, 4),
	}
}

func asFloat(v any) float64 { return convert.ToFloat64(v) }

// KeywordStateReport aggregates revenue per campaign, keyword and state.
func KeywordStateReport(ctx context.Context, ds *engine.Dataset, opts Options) (*report.Report, error) {
	c, err := ds.Cols(
		[2]string{"campaign", ""}, [2]string{"keyword", ""}, [2]string{"state", "''"},
		[2]string{"searches", "0"}, [2]string{"clicks", ""}, [2]string{"revenue", ""},
	)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		SELECT %s AS campaign, %s AS keyword, %s AS state,
		       SUM(%s) AS searches, SUM(%s) AS clicks, SUM(%s) AS revenue
		FROM %s
		WHERE (? = '' OR %s LIKE ? ESCAPE '\')
		GROUP BY 1, 2, 3
		HAVING SUM(%s) >= ?
		ORDER BY revenue DESC, campaign, keyword, state
		LIMIT ?`,
		c["campaign"], c["keyword"], c["state"],
		c["searches"], c["clicks"], c["revenue"],
		Table, c["campaign"], c["clicks"])
	rows, err := ds.DB.Query(ctx, q, opts.Campaign, engine.ContainsPattern(opts.Campaign), opts.MinClicks, limit(opts.Top))
	if err != nil {
		return nil, fmt.Errorf("keyword/state aggregation: %w", err)
	}
	out := addRatios(rows)
	return &report.Report{
		Name:   "s1-keyword-state",
		Title:  "System1 revenue by campaign × keyword × state",
		Source: ds.Source,
		Columns: append([]report.Column{
			{Key: "campaign", Label: "Campaign", Kind: report.KindText},
			{Key: "keyword", Label: "Keyword", Kind: report.KindText},
			{Key: "state", Label: "State", Kind: report.KindText},
		}, metricColumns...),
		Rows:   out,
		Totals: totals(out),
		Chart:  &report.ChartSpec{Type: "bar", XKey: "keyword", Series: []string{"revenue"}, Limit: 20},
	}, nil
}

// CampaignReport rolls everything up per campaign.
func CampaignReport(ctx context.Context, ds *engine.Dataset, opts Options) (*report.Report, error) {
	c, err := ds.Cols(
		[2]string{"campaign", ""}, [2]string{"keyword", ""}, [2]string{"state", "''"},
		[2]string{"searches", "0"}, [2]string{"clicks", ""}, [2]string{"revenue", ""},
	)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		SELECT %s AS campaign,
		       COUNT(DISTINCT %s) AS keywords, COUNT(DISTINCT %s) AS states,
		       SUM(%s) AS searches, SUM(%s) AS clicks, SUM(%s) AS revenue
		FROM %s
		WHERE (? = '' OR %s LIKE ? ESCAPE '\')
		GROUP BY 1
		HAVING SUM(%s) >= ?
		ORDER BY revenue DESC, campaign
		LIMIT ?`,
		c["campaign"], c["keyword"], c["state"],
		c["searches"], c["clicks"], c["revenue"],
		Table, c["campaign"], c["clicks"])
	rows, err := ds.DB.Query(ctx, q, opts.Campaign, engine.ContainsPattern(opts.Campaign), opts.MinClicks, limit(opts.Top))
	if err != nil {
		return nil, fmt.Errorf("campaign aggregation: %w", err)
	}
	out := addRatios(rows)
	return &report.Report{
		Name:   "s1-campaigns",
		Title:  "System1 campaign summary",
		Source: ds.Source,
		Columns: append([]report.Column{
			{Key: "campaign", Label: "Campaign", Kind: report.KindText},
			{Key: "keywords", Label: "Keywords", Kind: report.KindInt},
			{Key: "states", Label: "States", Kind: report.KindInt},
		}, metricColumns...),
		Rows:   out,
		Totals: totals(out),
		Chart:  &report.ChartSpec{Type: "bar", XKey: "campaign", Series: []string{"revenue", "clicks"}, Limit: 20},
	}, nil
}

// GapKeywords finds long-tail keywords: everything not in the Pareto set
// with at least MinSearches searches, ranked by RPS then revenue.
func GapKeywords(ctx context.Context, ds *engine.Dataset, pareto map[string]struct{}, opts Options) (*report.Report, error) {
	c, err := ds.Cols(
		[2]string{"campaign", ""}, [2]string{"keyword", ""},
		[2]string{"searches", "0"}, [2]string{"clicks", ""}, [2]string{"revenue", ""},
	)
	if err != nil {
		return nil, err
	}
	keywords := make([]string, 0, len(pareto))
	for kw := range pareto {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	if err := ds.DB.LoadValues(ctx, "pareto", "keyword", keywords); err != nil {
		return nil, fmt.Errorf("load pareto set: %w", err)
	}
	q := fmt.Sprintf(`
		SELECT %s AS keyword, COUNT(DISTINCT %s) AS campaigns,
		       SUM(%s) AS searches, SUM(%s) AS clicks, SUM(%s) AS revenue
		FROM %s
		WHERE %s <> '' AND %s NOT IN (SELECT keyword FROM pareto)
		GROUP BY 1
		HAVING SUM(%s) >= ?`,
		c["keyword"], c["campaign"],
		c["searches"], c["clicks"], c["revenue"],
		Table, c["keyword"], c["keyword"], c["searches"])
	rows, err := ds.DB.Query(ctx, q, opts.MinSearches)
	if err != nil {
		return nil, fmt.Errorf("gap keyword aggregation: %w", err)
	}
	out := addRatios(rows)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := asFloat(out[i]["rps"]), asFloat(out[j]["rps"])
		if ri != rj {
			return ri > rj
		}
		vi, vj := asFloat(out[i]["revenue"]), asFloat(out[j]["revenue"])
		if vi != vj {
			return vi > vj
		}
		return fmt.Sprint(out[i]["keyword"]) < fmt.Sprint(out[j]["keyword"])
	})
	if opts.Top > 0 && len(out) > opts.Top {
		out = out[:opts.Top]
	}
	return &report.Report{
		Name:   "s1-gap-keywords",
		Title:  fmt.Sprintf("Gap keywords outside the Pareto set (%d excluded)", len(pareto)),
		Source: ds.Source,
		Columns: append([]report.Column{
			{Key: "keyword", Label: "Keyword", Kind: report.KindText},
			{Key: "campaigns", Label: "Campaigns", Kind: report.KindInt},
		}, metricColumns...),
		Rows:   out,
		Totals: totals(out),
		Chart:  &report.ChartSpec{Type: "bar", XKey: "keyword", Series: []string{"rps"}, Limit: 25},
	}, nil
}

const defaultTrendWindow = 7

// DailyTrend aggregates per day and adds SMA/EMA of revenue over
// TrendWindow days (default 7). Days before the window fills carry 0.
func DailyTrend(ctx context.Context, ds *engine.Dataset, opts Options) (*report.Report, error) {
	if !ds.Has("date") {
		return nil, fmt.Errorf("%s: daily trend needs a date column", ds.Source)
	}
	c, err := ds.Cols(
		[2]string{"date", ""}, [2]string{"campaign", ""},
		[2]string{"searches", "0"}, [2]string{"clicks", ""}, [2]string{"revenue", ""},
	)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		SELECT %s AS date, SUM(%s) AS searches, SUM(%s) AS clicks, SUM(%s) AS revenue
		FROM %s
		WHERE %s <> '' AND (? = '' OR %s LIKE ? ESCAPE '\')
		GROUP BY 1
		ORDER BY 1`,
		c["date"], c["searches"], c["clicks"], c["revenue"],
		Table, c["date"], c["campaign"])
	rows, err := ds.DB.Query(ctx, q, opts.Campaign, engine.ContainsPattern(opts.Campaign))
	if err != nil {
		return nil, fmt.Errorf("daily aggregation: %w", err)
	}
	out := addRatios(rows)
	window := opts.TrendWindow
	if window <= 0 {
		window = defaultTrendWindow
	}
	revenue := make([]float64, len(out))
	for i, r := range out {
		revenue[i] = asFloat(r["revenue"])
	}
	sma, ema := movingAverages(revenue, window)
	for i, r := range out {
		r["sma"] = money.Round(sma[i], 2)
		r["ema"] = money.Round(ema[i], 2)
	}
	return &report.Report{
		Name:   "s1-daily",
		Title:  fmt.Sprintf("System1 daily revenue with %d-day averages", window),
		Source: ds.Source,
		Columns: append(append([]report.Column{
			{Key: "date", Label: "Date", Kind: report.KindText},
		}, metricColumns...),
			report.Column{Key: "sma", Label: fmt.Sprintf("SMA%d", window), Kind: report.KindCurrency},
			report.Column{Key: "ema", Label: fmt.Sprintf("EMA%d", window), Kind: report.KindCurrency},
		),
		Rows:   out,
		Totals: totals(out),
		Chart:  &report.ChartSpec{Type: "line", XKey: "date", Series: []string{"revenue", "sma", "ema"}},
	}, nil
}

func movingAverages(values []float64, window int) (sma, ema []float64) {
	if window < 2 || len(values) < window {
		return make([]float64, len(values)), make([]float64, len(values))
	}
	return talib.Sma(values, window), talib.Ema(values, window)
}
