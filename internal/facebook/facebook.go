// Package facebook reports on Facebook Ads Manager exports and joins their
// spend against System1 revenue.
package facebook

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"adpulse/internal/csvio"
	"adpulse/internal/engine"
	"adpulse/internal/pkg/convert"
	"adpulse/internal/pkg/money"
	"adpulse/internal/report"
)

const (
	Table      = "fb"
	FilePrefix = "facebook"
)

// Verdict thresholds on ROAS.
const (
	ScaleROAS = 1.3
	WatchROAS = 1.0
)

// Revenue is listed before results so "Purchases conversion value" is not
// claimed by the results field.
var Schema = csvio.Schema{
	{Name: "campaign", Candidates: []string{"campaign name", "campaign"}, Required: true},
	{Name: "adset", Candidates: []string{"ad set name", "ad set", "adset"}},
	{Name: "date", Candidates: []string{"day", "date", "reporting starts"}},
	{Name: "spend", Candidates: []string{"amount spent", "spend", "cost"}, Required: true, Numeric: true},
	{Name: "revenue", Candidates: []string{"purchase conversion value", "purchases conversion value", "conversion value", "revenue"}, Numeric: true},
	{Name: "impressions", Candidates: []string{"impressions"}, Numeric: true},
	{Name: "clicks", Candidates: []string{"link clicks", "clicks"}, Numeric: true},
	{Name: "results", Candidates: []string{"results", "purchases", "conversions"}, Numeric: true},
}

var normalizers = map[string]func(string) string{
	"date": csvio.NormalizeDate,
}

// Load reads path into db as the fb table.
func Load(ctx context.Context, db *engine.DB, path string) (*engine.Dataset, error) {
	t, err := csvio.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return engine.LoadDataset(ctx, db, Table, t, Schema, normalizers)
}

type Options struct {
	Campaign string
	ByAdSet  bool
	MinSpend float64
	Top      int
}

// Verdict classifies a campaign by return on ad spend. Spend with no
// revenue is always a cut; no spend at all is left on watch.
func Verdict(spend, revenue float64) string {
	switch {
	case spend <= 0:
		return "watch"
	case revenue <= 0:
		return "cut"
	}
	roas := revenue / spend
	switch {
	case roas >= ScaleROAS:
		return "scale"
	case roas >= WatchROAS:
		return "watch"
	default:
		return "cut"
	}
}

// CampaignPerformance aggregates spend and outcomes per campaign, or per
// campaign and ad set.
func CampaignPerformance(ctx context.Context, ds *engine.Dataset, opts Options) (*report.Report, error) {
	c, err := ds.Cols(
		[2]string{"campaign", ""}, [2]string{"adset", "''"}, [2]string{"spend", ""},
		[2]string{"revenue", "0"}, [2]string{"impressions", "0"},
		[2]string{"clicks", "0"}, [2]string{"results", "0"},
	)
	if err != nil {
		return nil, err
	}
	group, adset := "1", "'' AS adset"
	if opts.ByAdSet {
		group, adset = "1, 2", c["adset"]+" AS adset"
	}
	q := fmt.Sprintf(`
		SELECT %s AS campaign, %s,
		       SUM(%s) AS spend, SUM(%s) AS revenue, SUM(%s) AS impressions,
		       SUM(%s) AS clicks, SUM(%s) AS results
		FROM %s
		WHERE (? = '' OR %s LIKE ? ESCAPE '\')
		GROUP BY %s
		HAVING SUM(%s) >= ?
		ORDER BY spend DESC, campaign, adset
		LIMIT ?`,
		c["campaign"], adset,
		c["spend"], c["revenue"], c["impressions"], c["clicks"], c["results"],
		Table, c["campaign"], group, c["spend"])
	top := opts.Top
	if top <= 0 {
		top = -1
	}
	rows, err := ds.DB.Query(ctx, q, opts.Campaign, engine.ContainsPattern(opts.Campaign), opts.MinSpend, top)
	if err != nil {
		return nil, fmt.Errorf("campaign performance: %w", err)
	}

	out := make([]map[string]any, len(rows))
	var tSpend, tRevenue, tImpr, tClicks, tResults float64
	for i, r := range rows {
		spend, revenue := r.Float("spend"), r.Float("revenue")
		impr, clicks, results := r.Float("impressions"), r.Float("clicks"), r.Float("results")
		tSpend += spend
		tRevenue += revenue
		tImpr += impr
		tClicks += clicks
		tResults += results
		m := metrics(spend, revenue, impr, clicks, results)
		m["campaign"] = r.String("campaign")
		m["adset"] = r.String("adset")
		m["verdict"] = Verdict(spend, revenue)
		out[i] = m
	}
	totals := metrics(tSpend, tRevenue, tImpr, tClicks, tResults)

	cols := []report.Column{{Key: "campaign", Label: "Campaign", Kind: report.KindText}}
	if opts.ByAdSet {
		cols = append(cols, report.Column{Key: "adset", Label: "Ad set", Kind: report.KindText})
	}
	cols = append(cols,
		report.Column{Key: "spend", Label: "Spend", Kind: report.KindCurrency},
		report.Column{Key: "revenue", Label: "Revenue", Kind: report.KindCurrency},
		report.Column{Key: "impressions", Label: "Impr.", Kind: report.KindInt},
		report.Column{Key: "clicks", Label: "Clicks", Kind: report.KindInt},
		report.Column{Key: "results", Label: "Results", Kind: report.KindInt},
		report.Column{Key: "ctr", Label: "CTR", Kind: report.KindPercent},
		report.Column{Key: "cpc", Label: "CPC", Kind: report.KindCurrency},
		report.Column{Key: "cpa", Label: "CPA", Kind: report.KindCurrency},
		report.Column{Key: "roas", Label: "ROAS", Kind: report.KindRatio},
		report.Column{Key: "margin", Label: "Margin", Kind: report.KindCurrency},
		report.Column{Key: "verdict", Label: "Verdict", Kind: report.KindText},
	)
	return &report.Report{
		Name:    "fb-campaigns",
		Title:   "Facebook campaign performance",
		Source:  ds.Source,
		Columns: cols,
		Rows:    out,
		Totals:  totals,
		Chart:   &report.ChartSpec{Type: "bar", XKey: "campaign", Series: []string{"spend", "revenue"}, Limit: 20},
	}, nil
}

func metrics(spend, revenue, impr, clicks, results float64) map[string]any {
	return map[string]any{
		"spend":       money.Round(spend, 2),
		"revenue":     money.Round(revenue, 2),
		"impressions": impr,
		"clicks":      clicks,
		"results":     results,
		"ctr":         money.Ratio(clicks, impr, 4),
		"cpc":         money.Ratio(spend, clicks, 2),
		"cpa":         money.Ratio(spend, results, 2),
		"roas":        money.Ratio(revenue, spend, 4),
		"margin":      money.Sub(revenue, spend),
	}
}

// CampaignKey normalizes a campaign name for cross-platform joins:
// lower-case letters and digits only.
func CampaignKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type marginRow struct {
	campaign string
	spend    float64
	revenue  float64
}

// MarginReport joins Facebook spend with System1 revenue per campaign.
// Campaigns seen on only one side are kept with zeros on the other.
func MarginReport(ctx context.Context, fb, s1 *engine.Dataset) (*report.Report, error) {
	spendCol, err := fb.Cols([2]string{"campaign", ""}, [2]string{"spend", ""})
	if err != nil {
		return nil, err
	}
	revCol, err := s1.Cols([2]string{"campaign", ""}, [2]string{"revenue", ""})
	if err != nil {
		return nil, err
	}
	spendRows, err := fb.DB.Query(ctx, fmt.Sprintf(
		`SELECT %s AS campaign, SUM(%s) AS total FROM %s GROUP BY 1`,
		spendCol["campaign"], spendCol["spend"], fb.Table))
	if err != nil {
		return nil, fmt.Errorf("facebook spend: %w", err)
	}
	revRows, err := s1.DB.Query(ctx, fmt.Sprintf(
		`SELECT %s AS campaign, SUM(%s) AS total FROM %s GROUP BY 1`,
		revCol["campaign"], revCol["revenue"], s1.Table))
	if err != nil {
		return nil, fmt.Errorf("system1 revenue: %w", err)
	}

	joined := map[string]*marginRow{}
	var keys []string
	get := func(name string) *marginRow {
		k := CampaignKey(name)
		if m, ok := joined[k]; ok {
			return m
		}
		m := &marginRow{campaign: strings.TrimSpace(name)}
		joined[k] = m
		keys = append(keys, k)
		return m
	}
	for _, r := range spendRows {
		get(r.String("campaign")).spend += r.Float("total")
	}
	for _, r := range revRows {
		get(r.String("campaign")).revenue += r.Float("total")
	}
	sort.Strings(keys)

	out := make([]map[string]any, 0, len(keys))
	var tSpend, tRevenue float64
	for _, k := range keys {
		m := joined[k]
		tSpend += m.spend
		tRevenue += m.revenue
		out = append(out, marginFields(m.campaign, m.spend, m.revenue))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return convert.ToFloat64(out[i]["margin"]) > convert.ToFloat64(out[j]["margin"])
	})
	totals := marginFields("", tSpend, tRevenue)
	delete(totals, "campaign")
	delete(totals, "verdict")

	return &report.Report{
		Name:   "margin",
		Title:  "Margin: System1 revenue vs Facebook spend",
		Source: fb.Source + " + " + s1.Source,
		Columns: []report.Column{
			{Key: "campaign", Label: "Campaign", Kind: report.KindText},
			{Key: "spend", Label: "FB spend", Kind: report.KindCurrency},
			{Key: "revenue", Label: "S1 revenue", Kind: report.KindCurrency},
			{Key: "margin", Label: "Margin", Kind: report.KindCurrency},
			{Key: "roas", Label: "ROAS", Kind: report.KindRatio},
			{Key: "verdict", Label: "Verdict", Kind: report.KindText},
		},
		Rows:   out,
		Totals: totals,
		Chart:  &report.ChartSpec{Type: "bar", XKey: "campaign", Series: []string{"margin"}, Limit: 20},
	}, nil
}

func marginFields(campaign string, spend, revenue float64) map[string]any {
	return map[string]any{
		"campaign": campaign,
		"spend":    money.Round(spend, 2),
		"revenue":  money.Round(revenue, 2),
		"margin":   money.Sub(revenue, spend),
		"roas":     money.Ratio(revenue, spend, 4),
		"verdict":  Verdict(spend, revenue),
	}
}
