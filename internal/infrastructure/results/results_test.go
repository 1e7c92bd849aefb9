package results

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

var (
	_ ports.ResultSink     = (*CSVSink)(nil)
	_ ports.ResultSink     = (*Store)(nil)
	_ ports.ResultSink     = FanOut(nil)
	_ ports.ArtifactWriter = (*Artifacts)(nil)
)

func flowRow(step int, score float64) result.FlowRow {
	return result.FlowRow{
		Package: "com.app",
		Process: "process_1",
		Step:    step,
		Scores:  [3]float64{score, score, score},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestCSVSinkUpsertsByIdentity(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rq2", "results.csv")
	sink, err := OpenCSV(path, result.KindFlow)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, flowRow(0, 0.5)))
	require.NoError(t, sink.Write(ctx, flowRow(1, 0.25)))
	require.NoError(t, sink.Write(ctx, flowRow(0, 0.75)))
	require.NoError(t, sink.Close())
	require.Equal(t, 2, sink.Len())

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	require.Equal(t, strings.Join(result.FlowColumns, ","), lines[0])
	require.True(t, strings.HasPrefix(lines[1], "com.app/process_1/0,0.750000"))
	require.True(t, strings.HasPrefix(lines[2], "com.app/process_1/1,0.250000"))
}

func TestCSVSinkRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	ctx := context.Background()

	for range 2 {
		sink, err := OpenCSV(path, result.KindFlow)
		require.NoError(t, err)
		for step := range 3 {
			require.NoError(t, sink.Write(ctx, flowRow(step, 0.1)))
		}
		require.NoError(t, sink.Close())
	}

	require.Len(t, readLines(t, path), 4)
}

func TestCSVSinkKeysOnLeadingColumns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "screens.csv")
	sink, err := OpenCSV(path, result.KindScreen)
	require.NoError(t, err)

	ctx := context.Background()
	for _, matcher := range []string{"layout", "full"} {
		row := result.ScreenRow{
			Image:    "a/1.jpg",
			Mutation: "delete_widgets",
			Matcher:  matcher,
			Checker:  "baseline",
			Counts:   inconsistency.Counts{TP: 1},
		}
		require.NoError(t, sink.Write(ctx, row))
		require.NoError(t, sink.Write(ctx, row))
	}
	require.Equal(t, 2, sink.Len())
	require.Len(t, readLines(t, path), 3)
}

func TestCSVSinkRejectsMismatches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))
	_, err := OpenCSV(path, result.KindFlow)
	require.ErrorContains(t, err, "has columns")

	sink, err := OpenCSV(filepath.Join(dir, "other.csv"), result.KindFlow)
	require.NoError(t, err)
	err = sink.Write(context.Background(), result.PipelineSummary{Pipeline: "full"})
	require.ErrorContains(t, err, "does not fit")

	_, err = OpenCSV(filepath.Join(dir, "x.csv"), "bogus")
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sink.Write(ctx, flowRow(0, 0)), context.Canceled)
}

func TestCSVSinkEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	sink, err := OpenCSV(path, result.KindFlow)
	require.NoError(t, err)
	require.Zero(t, sink.Len())
	require.NoError(t, sink.Close())
	require.Equal(t, []string{strings.Join(result.FlowColumns, ",")}, readLines(t, path))
}

func TestStoreUpsertsAcrossRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.db")
	ctx := context.Background()

	store, err := OpenStore(path)
	require.NoError(t, err)
	first, err := store.Begin(ctx, Run{Command: "flow", Mode: "replay", Dataset: "/data", Seed: 7})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.False(t, first.StartedAt.IsZero())
	require.NoError(t, store.Write(ctx, flowRow(0, 0.5)))
	require.NoError(t, store.Write(ctx, flowRow(1, 0.5)))
	require.NoError(t, store.Close())

	store, err = OpenStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	second, err := store.Begin(ctx, Run{ID: "run-2", Command: "flow", DatasetRevision: "abc123", StartedAt: time.Unix(0, 0)})
	require.NoError(t, err)
	require.Equal(t, "run-2", second.ID)
	require.NoError(t, store.Write(ctx, flowRow(0, 0.9)))

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, runs)

	rows, err := store.Rows(ctx, result.KindFlow)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "com.app/process_1/0", rows[0].Identity)
	require.Equal(t, "run-2", rows[0].RunID)
	require.Equal(t, "0.900000", rows[0].Values[1])
	require.Equal(t, result.FlowColumns, rows[0].Columns)
	require.Equal(t, first.ID, rows[1].RunID)

	screens, err := store.Rows(ctx, result.KindScreen)
	require.NoError(t, err)
	require.Empty(t, screens)
}

func TestStoreRequiresRun(t *testing.T) {
	t.Parallel()

	store, err := OpenStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.ErrorContains(t, store.Write(context.Background(), flowRow(0, 0)), "no run started")
}

type failingSink struct {
	writes int
	err    error
}

func (f *failingSink) Write(context.Context, result.Row) error {
	f.writes++
	return f.err
}

func (f *failingSink) Close() error { return f.err }

func TestFanOut(t *testing.T) {
	t.Parallel()

	ok := &failingSink{}
	broken := &failingSink{err: errors.New("disk full")}
	after := &failingSink{}

	fan := FanOut{ok, broken, after}
	require.ErrorContains(t, fan.Write(context.Background(), flowRow(0, 0)), "disk full")
	require.Equal(t, 1, ok.writes)
	require.Equal(t, 1, broken.writes)
	require.Zero(t, after.writes)

	require.ErrorContains(t, fan.Close(), "disk full")
	require.NoError(t, FanOut{ok, after}.Close())
}

func TestArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := NewArtifacts(dir)
	ctx := context.Background()
	scope := "com.app-process_1"

	require.NoError(t, a.WriteVisualization(ctx, scope, 3, map[string]int{"tp": 1}))
	data, err := os.ReadFile(filepath.Join(dir, "visualize", scope, "3.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"tp":1}`, string(data))

	require.NoError(t, a.AppendTranscript(ctx, scope, 3, "attempt 1"))
	require.NoError(t, a.AppendTranscript(ctx, scope, 3, "attempt 2"))
	require.Equal(t, []string{"attempt 1", "attempt 2"}, readLines(t, filepath.Join(a.Root(), scope, "inconsistent", "3.txt")))

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, a.WriteAttemptImage(ctx, scope, 3, png))
	require.FileExists(t, filepath.Join(a.Root(), scope, "inconsistent", "3.png"))

	require.NoError(t, a.WriteAttemptImage(ctx, scope, 4, []byte{0xff, 0xd8, 0xff, 0xe0}))
	require.FileExists(t, filepath.Join(a.Root(), scope, "inconsistent", "4.jpg"))

	require.NoError(t, a.WriteAttemptImage(ctx, scope, 5, nil))
	require.NoFileExists(t, filepath.Join(a.Root(), scope, "inconsistent", "5.jpg"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, a.WriteVisualization(cancelled, scope, 6, nil), context.Canceled)
}
