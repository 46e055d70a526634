package facebook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpulse/internal/engine"
	"adpulse/internal/system1"
)

const fbFixture = `Campaign name,Ad set name,Day,Amount spent (USD),Impressions,Link clicks,Results,Purchases conversion value
Alpha Auto,set-a,2024-03-01,100,10000,200,4,150
Alpha Auto,set-b,2024-03-01,50,5000,100,1,40
Beta Home,set-a,2024-03-01,80,4000,0,0,0
Gamma Pets,set-a,2024-03-01,20,1000,10,1,21
`

const s1Fixture = `Campaign,Keyword,Clicks,Revenue
alpha_auto,car insurance,10,300
gamma-pets,dog food,2,5
delta,roofing,1,9
`

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func openDB(t *testing.T) *engine.DB {
	t.Helper()
	db, err := engine.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestVerdict(t *testing.T) {
	cases := []struct {
		spend, revenue float64
		want           string
	}{
		{100, 130, "scale"},
		{100, 129, "watch"},
		{100, 100, "watch"},
		{100, 99, "cut"},
		{100, 0, "cut"},
		{0, 0, "watch"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Verdict(tc.spend, tc.revenue), "spend=%v revenue=%v", tc.spend, tc.revenue)
	}
}

func TestCampaignPerformance(t *testing.T) {
	ctx := context.Background()
	ds, err := Load(ctx, openDB(t), write(t, "facebook.csv", fbFixture))
	require.NoError(t, err)

	r, err := CampaignPerformance(ctx, ds, Options{})
	require.NoError(t, err)
	require.Len(t, r.Rows, 3)
	alpha := r.Rows[0]
	assert.Equal(t, "Alpha Auto", alpha["campaign"])
	assert.Equal(t, 150.0, alpha["spend"])
	assert.Equal(t, 190.0, alpha["revenue"])
	assert.Equal(t, 0.02, alpha["ctr"])
	assert.Equal(t, 0.5, alpha["cpc"])
	assert.Equal(t, 30.0, alpha["cpa"])
	assert.Equal(t, 40.0, alpha["margin"])
	assert.Equal(t, "watch", alpha["verdict"])

	beta := r.Rows[1]
	assert.Equal(t, 0.0, beta["cpc"])
	assert.Equal(t, "cut", beta["verdict"])
	assert.Equal(t, 250.0, r.Totals["spend"])

	r, err = CampaignPerformance(ctx, ds, Options{ByAdSet: true, MinSpend: 60})
	require.NoError(t, err)
	require.Len(t, r.Rows, 2)
	assert.Equal(t, "set-a", r.Rows[0]["adset"])
	_, ok := r.Column("adset")
	assert.True(t, ok)
}

func TestCampaignKey(t *testing.T) {
	assert.Equal(t, "alphaauto", CampaignKey("Alpha Auto"))
	assert.Equal(t, "alphaauto", CampaignKey(" alpha_auto "))
	assert.Equal(t, "gammapets2", CampaignKey("Gamma-Pets #2"))
}

func TestMarginReportKeepsOneSidedCampaigns(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	fb, err := Load(ctx, db, write(t, "facebook.csv", fbFixture))
	require.NoError(t, err)
	s1, err := system1.Load(ctx, db, write(t, "system1.csv", s1Fixture))
	require.NoError(t, err)

	r, err := MarginReport(ctx, fb, s1)
	require.NoError(t, err)
	byName := map[string]map[string]any{}
	for _, row := range r.Rows {
		byName[row["campaign"].(string)] = row
	}
	require.Len(t, byName, 4)

	alpha := byName["Alpha Auto"]
	require.NotNil(t, alpha)
	assert.Equal(t, 300.0, alpha["revenue"])
	assert.Equal(t, 150.0, alpha["margin"])
	assert.Equal(t, 2.0, alpha["roas"])
	assert.Equal(t, "scale", alpha["verdict"])

	assert.Equal(t, -80.0, byName["Beta Home"]["margin"])
	assert.Equal(t, 9.0, byName["delta"]["margin"])
	assert.Equal(t, -15.0, byName["Gamma Pets"]["margin"])

	assert.Equal(t, "Alpha Auto", r.Rows[0]["campaign"])
	assert.Equal(t, 314.0, r.Totals["revenue"])
}
