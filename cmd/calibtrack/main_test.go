package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type harness struct {
	t    *testing.T
	dir  string
	file string
}

func newHarness(t *testing.T, autosave bool) *harness {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "calibtrack.yaml")
	yaml := "storage:\n" +
		"  driver: sqlite\n" +
		"  sqlite_path: " + filepath.Join(dir, "calibtrack.db") + "\n" +
		"  autosave: " + map[bool]string{true: "true", false: "false"}[autosave] + "\n" +
		"blob:\n" +
		"  driver: fs\n" +
		"  fs_root: " + filepath.Join(dir, "attachments") + "\n" +
		"logging:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o600))
	return &harness{t: t, dir: dir, file: file}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	err := execute(context.Background(), append([]string{"--config", h.file}, args...), &out, &errOut)
	return out.String(), err
}

func (h *harness) must(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, strings.Join(args, " "))
	return out
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestSiteAndAssetLifecycle(t *testing.T) {
	for _, autosave := range []bool{true, false} {
		h := newHarness(t, autosave)

		siteID := strings.TrimSpace(h.must("site", "add", "--name", "North Mine", "--customer", "Acme"))
		require.NotEmpty(t, siteID)

		ids := lines(h.must("asset", "add", siteID, "--name", "Conveyor 1", "--code", "CV-1", "--weigher", "W1"))
		require.Len(t, ids, 2)
		serviceID, rollerID := ids[0], ids[1]
		require.True(t, strings.HasPrefix(serviceID, "s-"))
		require.True(t, strings.HasPrefix(rollerID, "r-"))

		out := h.must("asset", "set", siteID, serviceID, "lastCal", "2024-01-01")
		require.Contains(t, out, "due 2024-04-01")
		h.must("asset", "set", siteID, serviceID, "name", "Conveyor 1A")

		show := h.must("site", "show", siteID)
		require.Contains(t, show, "North Mine")
		require.Equal(t, 2, strings.Count(show, "Conveyor 1A"), "the rename reaches the mirror record")
		require.Contains(t, show, "2024-04-01")

		_, err := h.run("asset", "set", siteID, serviceID, "dueDate", "2030-01-01")
		require.Error(t, err)

		h.must("asset", "archive", siteID, rollerID)
		show = h.must("site", "show", siteID)
		require.NotContains(t, show, " yes\n", "both records are archived")

		require.Contains(t, h.must("sites"), siteID)
		h.must("site", "archive", siteID)
		require.NotContains(t, h.must("sites"), siteID)
		require.Contains(t, h.must("sites", "--all"), siteID)
		_, err = h.run("site", "archive", siteID)
		require.ErrorContains(t, err, "already archived")
		h.must("site", "restore", siteID)

		h.must("asset", "delete", siteID, serviceID)
		require.NotContains(t, h.must("site", "show", siteID), "Conveyor 1A")

		h.must("site", "delete", siteID)
		_, err = h.run("site", "show", siteID)
		require.Error(t, err)
	}
}

func TestSeedAndStatus(t *testing.T) {
	h := newHarness(t, true)
	siteID := strings.TrimSpace(h.must("seed", "--assets", "3", "--seed", "7"))
	require.True(t, strings.HasPrefix(siteID, "site-sample-"))

	status := h.must("status")
	require.Contains(t, status, "OVERDUE")
	require.Contains(t, status, "TOTAL")

	show := h.must("site", "show", siteID)
	require.Contains(t, show, "SAMPLE-003")
}

func TestReportAttachAndPrune(t *testing.T) {
	h := newHarness(t, true)
	siteID := strings.TrimSpace(h.must("site", "add", "--name", "Plant"))
	ids := lines(h.must("asset", "add", siteID, "--name", "Belt", "--code", "B1"))

	file := filepath.Join(h.dir, "cert.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF"), 0o600))
	key := strings.TrimSpace(h.must("report", "attach", siteID, ids[0], file, "--date", "2024-02-01", "--technician", "CB"))
	require.True(t, strings.HasPrefix(key, "sites/"+siteID+"/assets/"))
	require.FileExists(t, filepath.Join(h.dir, "attachments", filepath.FromSlash(key)))

	require.Contains(t, h.must("report", "prune"), "removed 0")
	h.must("site", "delete", siteID)
	require.Contains(t, h.must("report", "prune"), "removed 1")
}

func TestLocationAndMigrate(t *testing.T) {
	h := newHarness(t, true)
	require.Equal(t, filepath.Join(h.dir, "calibtrack.db"), strings.TrimSpace(h.must("location", "get")))

	target := filepath.Join(h.dir, "moved", "sites.db")
	require.Equal(t, target, strings.TrimSpace(h.must("location", "set", target)))
	require.Equal(t, target, strings.TrimSpace(h.must("location", "get")))

	require.Contains(t, h.must("migrate"), "schema ready (sqlite)")
	require.FileExists(t, target)
}

func TestUnknownCommandFails(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.run("frobnicate")
	require.Error(t, err)
	_, err = h.run("asset", "add", "missing-site", "--name", "X", "--code", "Y")
	require.Error(t, err)
}

func TestMetricsTextfile(t *testing.T) {
	h := newHarness(t, true)
	metricsFile := filepath.Join(h.dir, "calibtrack.prom")
	f, err := os.OpenFile(h.file, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("metrics:\n  textfile: " + metricsFile + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	h.must("site", "add", "--name", "Metrics Mine")

	raw, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	text := string(raw)
	require.Contains(t, text, `calibtrack_operations_total{operation="add_site",status="success"} 1`)
	require.Contains(t, text, `calibtrack_operations_total{operation="load",status="success"} 1`)
	require.Contains(t, text, "calibtrack_operation_duration_seconds_bucket")
}
