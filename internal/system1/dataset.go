// Package system1 aggregates System1 SERP monetization exports: revenue,
// searches and clicks per campaign, keyword, state and day.
package system1

import (
	"context"
	"strings"

	"adpulse/internal/csvio"
	"adpulse/internal/engine"
)

// Table is the engine table System1 rows are loaded into.
const Table = "s1"

// FilePrefix selects System1 exports in the input directory.
const FilePrefix = "system1"

// Schema lists the columns System1 reports read. Header names vary between
// export versions, so each field carries several fragments.
var Schema = csvio.Schema{
	{Name: "date", Candidates: []string{"date", "day"}},
	{Name: "campaign", Candidates: []string{"campaign", "sub id", "subid"}, Required: true},
	{Name: "keyword", Candidates: []string{"keyword", "search term", "query"}, Required: true},
	{Name: "state", Candidates: []string{"state", "region"}},
	{Name: "searches", Candidates: []string{"total searches", "searches"}, Numeric: true},
	{Name: "clicks", Candidates: []string{"total clicks", "clicks"}, Required: true, Numeric: true},
	{Name: "revenue", Candidates: []string{"estimated net revenue", "net revenue", "revenue", "earnings"}, Required: true, Numeric: true},
}

var normalizers = map[string]func(string) string{
	"keyword": csvio.NormalizeKeyword,
	"date":    csvio.NormalizeDate,
	"state":   normalizeState,
}

// normalizeState upper-cases two-letter codes and collapses whitespace in
// full names, so "ca" and "CA " group together.
func normalizeState(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) == 2 {
		return strings.ToUpper(s)
	}
	return s
}

// Load reads path into db as the s1 table.
func Load(ctx context.Context, db *engine.DB, path string) (*engine.Dataset, error) {
	t, err := csvio.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return engine.LoadDataset(ctx, db, Table, t, Schema, normalizers)
}
