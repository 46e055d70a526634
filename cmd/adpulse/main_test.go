package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const s1CSV = `Date,Campaign,Keyword,State,Total Searches,Total Clicks,Estimated Net Revenue
2024-03-01,alpha-auto,car insurance,CA,100,10,$50.00
2024-03-02,beta-home,home warranty,NY,200,20,"$1,000.00"
`

type workspace struct {
	dir, config, input, runs string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		input:  filepath.Join(dir, "data"),
		runs:   filepath.Join(dir, "runs"),
	}
	require.NoError(t, os.MkdirAll(ws.input, 0o755))
	cfg := fmt.Sprintf(`app:
  log_level: error
data:
  input_dir: %s
  runs_dir: %s
  reports_dir: %s
  ledger_path: %s
`, ws.input, ws.runs, filepath.Join(dir, "reports"), filepath.Join(ws.runs, "ledger.db"))
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0o644))
	return ws
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestS1CampaignsWritesJSONAndRecordsRun(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.input, "system1_20240302.csv"), []byte(s1CSV), 0o644))

	out, err := execute(t, "--config", ws.config, "s1", "campaigns", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "System1 campaign summary")
	assert.Contains(t, out, "beta-home")

	matches, err := filepath.Glob(filepath.Join(ws.runs, "s1-campaigns-*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	out, err = execute(t, "--config", ws.config, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "s1-campaigns")
	assert.Contains(t, out, "ok")
}

func TestMissingInputIsRecordedAsFailure(t *testing.T) {
	ws := newWorkspace(t)
	_, err := execute(t, "--config", ws.config, "fb", "campaigns")
	require.Error(t, err)

	out, err := execute(t, "--config", ws.config, "runs", "--kind", "fb-campaigns")
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
}

func TestDetectReadsStdinArgument(t *testing.T) {
	ws := newWorkspace(t)
	out, err := execute(t, "--config", ws.config, "detect", "Cheap car insurance quotes for new drivers.")
	require.NoError(t, err)
	assert.Contains(t, out, `"aiLikelihood": 0`)
	assert.Contains(t, out, `"category": "insurance"`)

	_, err = execute(t, "--config", ws.config, "detect")
	assert.ErrorContains(t, err, "no text")
}

func TestDetectListsCategories(t *testing.T) {
	ws := newWorkspace(t)
	out, err := execute(t, "--config", ws.config, "detect", "--categories")
	require.NoError(t, err)
	assert.Contains(t, strings.Split(strings.TrimSpace(out), "\n"), "insurance")
}

func TestIsCSVEvent(t *testing.T) {
	assert.True(t, isCSVEvent(fsnotify.Event{Name: "/d/system1_x.CSV", Op: fsnotify.Create}))
	assert.True(t, isCSVEvent(fsnotify.Event{Name: "/d/a.csv", Op: fsnotify.Write}))
	assert.False(t, isCSVEvent(fsnotify.Event{Name: "/d/a.csv", Op: fsnotify.Remove}))
	assert.False(t, isCSVEvent(fsnotify.Event{Name: "/d/a.txt", Op: fsnotify.Create}))
}

func TestParamsDropsZeroValues(t *testing.T) {
	assert.Equal(t, map[string]string{"campaign": "x"}, params("campaign", "x", "top", "0", "by_adset", "false", "min", ""))
}

func TestS1FlagsMatchWhatEachReportReads(t *testing.T) {
	want := map[string][]string{
		"keywords":  {"campaign", "min-clicks"},
		"campaigns": {"campaign", "min-clicks"},
		"daily":     {"campaign", "window"},
		"gaps":      {"min-searches", "pareto"},
	}
	all := []string{"campaign", "min-clicks", "min-searches", "window", "pareto"}
	root := newRootCmd()
	for sub, flags := range want {
		cmd, _, err := root.Find([]string{"s1", sub})
		require.NoError(t, err)
		for _, name := range all {
			registered := cmd.Flags().Lookup(name) != nil
			assert.Equal(t, slices.Contains(flags, name), registered, "s1 %s --%s", sub, name)
		}
	}

	ws := newWorkspace(t)
	_, err := execute(t, "--config", ws.config, "s1", "keywords", "--min-searches", "5")
	assert.ErrorContains(t, err, "unknown flag")
}
