package system1

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpulse/internal/engine"
)

const fixture = `Date,Campaign,Keyword,State,Total Searches,Total Clicks,Estimated Net Revenue
2024-03-01,alpha-auto,Car Insurance,ca,100,10,$50.00
2024-03-01,alpha-auto,car insurance,CA,50,5,$25.00
2024-03-01,alpha-auto,cheap loans,TX,40,0,$0.00
2024-03-02,beta-home,home warranty,NY,200,20,"$1,000.00"
2024-03-02,beta-home,roof repair,NY,10,2,$4.00
`

func load(t *testing.T, body string) *engine.Dataset {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "system1_2024.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	db, err := engine.Open(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ds, err := Load(ctx, db, path)
	require.NoError(t, err)
	return ds
}

func TestKeywordStateReportGroupsNormalizedKeys(t *testing.T) {
	ds := load(t, fixture)
	r, err := KeywordStateReport(context.Background(), ds, Options{})
	require.NoError(t, err)
	require.Len(t, r.Rows, 4)

	top := r.Rows[0]
	assert.Equal(t, "beta-home", top["campaign"])
	assert.Equal(t, 1000.0, top["revenue"])

	second := r.Rows[1]
	assert.Equal(t, "car insurance", second["keyword"])
	assert.Equal(t, "CA", second["state"])
	assert.Equal(t, 75.0, second["revenue"])
	assert.Equal(t, 5.0, second["rpc"])
	assert.Equal(t, 0.5, second["rps"])

	assert.Equal(t, 1079.0, r.Totals["revenue"])
	assert.Equal(t, "system1_2024.csv", r.Source)
}

func TestKeywordStateReportFilters(t *testing.T) {
	ds := load(t, fixture)
	r, err := KeywordStateReport(context.Background(), ds, Options{Campaign: "alpha", MinClicks: 1})
	require.NoError(t, err)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "car insurance", r.Rows[0]["keyword"])

	r, err = KeywordStateReport(context.Background(), ds, Options{Top: 2})
	require.NoError(t, err)
	assert.Len(t, r.Rows, 2)
}

func TestCampaignFilterIsBound(t *testing.T) {
	ds := load(t, fixture)
	r, err := KeywordStateReport(context.Background(), ds, Options{Campaign: "x' OR '1'='1"})
	require.NoError(t, err)
	assert.Empty(t, r.Rows)
}

func TestCampaignFilterTreatsWildcardsLiterally(t *testing.T) {
	ds := load(t, `Date,Campaign,Keyword,State,Total Searches,Total Clicks,Estimated Net Revenue
2024-03-01,gamma_50%off,solar,CA,10,1,$5.00
2024-03-01,gammaX50,solar,CA,10,1,$7.00
`)
	for _, filter := range []string{"a_5", "50%", "_50%o"} {
		r, err := CampaignReport(context.Background(), ds, Options{Campaign: filter})
		require.NoError(t, err)
		require.Len(t, r.Rows, 1, filter)
		assert.Equal(t, "gamma_50%off", r.Rows[0]["campaign"], filter)
	}
	r, err := CampaignReport(context.Background(), ds, Options{Campaign: "%"})
	require.NoError(t, err)
	assert.Len(t, r.Rows, 1)
}

func TestZeroClicksGiveZeroRatios(t *testing.T) {
	ds := load(t, fixture)
	r, err := KeywordStateReport(context.Background(), ds, Options{Campaign: "alpha"})
	require.NoError(t, err)
	var loans map[string]any
	for _, row := range r.Rows {
		if row["keyword"] == "cheap loans" {
			loans = row
		}
	}
	require.NotNil(t, loans)
	assert.Equal(t, 0.0, loans["rpc"])
	assert.Equal(t, 0.0, loans["rps"])
}

func TestCampaignReport(t *testing.T) {
	ds := load(t, fixture)
	r, err := CampaignReport(context.Background(), ds, Options{})
	require.NoError(t, err)
	require.Len(t, r.Rows, 2)
	beta := r.Rows[0]
	assert.Equal(t, "beta-home", beta["campaign"])
	assert.EqualValues(t, 2, beta["keywords"])
	assert.EqualValues(t, 1, beta["states"])
	assert.Equal(t, 1004.0, beta["revenue"])
	alpha := r.Rows[1]
	assert.EqualValues(t, 2, alpha["keywords"])
	assert.Equal(t, 2, len(r.Chart.Series))
}

func TestGapKeywordsExcludesParetoSet(t *testing.T) {
	ds := load(t, fixture)
	pareto := map[string]struct{}{"home warranty": {}}
	r, err := GapKeywords(context.Background(), ds, pareto, Options{MinSearches: 20})
	require.NoError(t, err)
	var keywords []string
	for _, row := range r.Rows {
		keywords = append(keywords, fmt.Sprint(row["keyword"]))
	}
	assert.Equal(t, []string{"car insurance", "cheap loans"}, keywords)

	// second run on the same db reloads the pareto table
	r, err = GapKeywords(context.Background(), ds, map[string]struct{}{}, Options{})
	require.NoError(t, err)
	assert.Len(t, r.Rows, 4)
	assert.Equal(t, "home warranty", r.Rows[0]["keyword"])
}

func TestDailyTrend(t *testing.T) {
	var b strings.Builder
	b.WriteString("Day,Campaign,Keyword,Clicks,Revenue\n")
	for d := 1; d <= 9; d++ {
		fmt.Fprintf(&b, "03/%02d/2024,c1,kw,1,%d\n", d, d*10)
	}
	ds := load(t, b.String())
	r, err := DailyTrend(context.Background(), ds, Options{})
	require.NoError(t, err)
	require.Len(t, r.Rows, 9)
	assert.Equal(t, "2024-03-01", r.Rows[0]["date"])
	assert.Equal(t, 0.0, r.Rows[5]["sma"])
	assert.Equal(t, 40.0, r.Rows[6]["sma"])
	assert.Equal(t, 50.0, r.Rows[7]["sma"])
	assert.Equal(t, 40.0, r.Rows[6]["ema"])
	assert.Equal(t, "line", r.Chart.Type)
}

func TestDailyTrendShortSeries(t *testing.T) {
	ds := load(t, fixture)
	r, err := DailyTrend(context.Background(), ds, Options{})
	require.NoError(t, err)
	require.Len(t, r.Rows, 2)
	assert.Equal(t, 0.0, r.Rows[1]["sma"])
}

func TestDailyTrendNeedsDate(t *testing.T) {
	ds := load(t, "Campaign,Keyword,Clicks,Revenue\nc,k,1,2\n")
	_, err := DailyTrend(context.Background(), ds, Options{})
	assert.Error(t, err)
}
