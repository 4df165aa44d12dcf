package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/autopark/internal/fsutil"
	"github.com/banshee-data/autopark/internal/park"
	"github.com/banshee-data/autopark/internal/runlog"
	"github.com/banshee-data/autopark/internal/runstore"
	"github.com/banshee-data/autopark/internal/serialmux"
)

func TestFlagDefaults(t *testing.T) {
	o := optionsFromFlags()
	assert.False(t, o.sim)
	assert.Equal(t, serialmux.DefaultBaudRate, o.baud)
	assert.Equal(t, runlog.DefaultPath, o.logPath)
	assert.Equal(t, "autopark.db", o.dbPath)
	assert.Empty(t, o.plotDir)
	assert.Empty(t, o.debugListen)
	assert.Equal(t, 700.0, o.simGap)
	assert.IsType(t, fsutil.OSFileSystem{}, o.fs)
}

func simRunOptions(t *testing.T, gap float64) (runOptions, *fsutil.MemoryFileSystem) {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	return runOptions{
		sim:     true,
		simFast: true,
		simGap:  gap,
		logPath: "/out/logfile.txt",
		dbPath:  filepath.Join(t.TempDir(), "runs.db"),
		plotDir: "/out/plots",
		fs:      fsys,
	}, fsys
}

func TestRun_SimulatedParks(t *testing.T) {
	o, fsys := simRunOptions(t, 700)

	report, err := run(context.Background(), o)
	require.NoError(t, err)
	require.Equal(t, park.OutcomeParked, report.Outcome)

	logText, err := fsys.ReadFile(o.logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logText), "Outcome: parked")
	assert.Len(t, fsys.Files(o.plotDir), 2)

	store, err := runstore.Open(o.dbPath, nil)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "parked", runs[0].Outcome)
}

func TestRun_SimulatedNarrowGap(t *testing.T) {
	o, fsys := simRunOptions(t, 400)
	o.dbPath = ""
	o.plotDir = ""

	report, err := run(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, park.OutcomeNoSpot, report.Outcome)
	assert.Equal(t, park.ReasonNoSpot, report.Reason)

	logText, err := fsys.ReadFile(o.logPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(logText), "Reason: "+park.ReasonNoSpot))
}

func TestRun_BadConfig(t *testing.T) {
	o, _ := simRunOptions(t, 700)
	o.configPath = "tuning.yaml"

	_, err := run(context.Background(), o)
	assert.ErrorContains(t, err, ".json extension")
}
