package scanplot

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/autopark/internal/config"
	"github.com/banshee-data/autopark/internal/corner"
	"github.com/banshee-data/autopark/internal/driver/sim"
	"github.com/banshee-data/autopark/internal/fsutil"
	"github.com/banshee-data/autopark/internal/park"
	"github.com/banshee-data/autopark/internal/testutil"
	"github.com/banshee-data/autopark/internal/timeutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestRender_MarksFoundCornersOnly(t *testing.T) {
	rec := park.ScanRecord{
		Phase:  park.PhaseSearch,
		Buffer: testutil.Buffer(90, 0.5, 400, 410, 1200, 1190),
		Corners: corner.Set{
			First:  corner.Corner{Angle: 90.5, Distance: 410, Found: true},
			Second: corner.Corner{Angle: 91, Distance: 1200, Found: true},
		},
	}
	p, err := Render(rec)
	require.NoError(t, err)
	assert.Equal(t, "search scan (position 0, attempt 0)", p.Title.Text)


	var names []string
	for _, m := range cornerMarks(rec) {
		names = append(names, m.name)
	}
	assert.Equal(t, []string{"first", "second"}, names)
}

func TestRender_EmptyBuffer(t *testing.T) {
	rec := park.ScanRecord{Phase: park.PhaseRecheck}
	p, err := Render(rec)
	require.NoError(t, err)
	assert.Empty(t, cornerMarks(rec))

	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = wt.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestPlotter_RequiresStart(t *testing.T) {
	p := New(fsutil.NewMemoryFileSystem(), "/plots")
	err := p.RecordScan(context.Background(), park.ScanRecord{})
	assert.Error(t, err)
}

func TestPlotter_SimulatedRun(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	opts := sim.DefaultOptions()
	opts.Clock = clock
	plots := New(fsys, "/plots")

	c := park.NewController(park.Config{
		Driver:   sim.New(opts),
		Options:  park.OptionsFromConfig(config.DefaultTuningConfig()),
		Clock:    clock,
		Recorder: plots,
	})
	report, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, park.OutcomeParked, report.Outcome)

	want := []string{
		"/plots/20260101T120000Z/scan-000-search.png",
		"/plots/20260101T120000Z/scan-001-recheck.png",
	}
	assert.Equal(t, want, plots.Files())
	assert.Equal(t, want, fsys.Files("/plots/20260101T120000Z"))

	for _, name := range want {
		data, err := fsys.ReadFile(name)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", name)
	}
}
