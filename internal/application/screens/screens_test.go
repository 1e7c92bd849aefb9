package screens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/flowcheck/internal/config"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/flowcheck/internal/mutate"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

type mapLoader map[string]*screen.Screen

func (m mapLoader) Load(_ context.Context, path string) (*screen.Screen, error) {
	s, ok := m[path]
	if !ok {
		return nil, flowerrors.NewCaptureError("file", path, flowerrors.ErrCaptureNotFound)
	}
	return s.Clone(), nil
}

type memorySink struct {
	mu      sync.Mutex
	rows    []result.Row
	closed  bool
	failOn  int
	written int
}

func (s *memorySink) Write(_ context.Context, row result.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written++
	if s.failOn > 0 && s.written == s.failOn {
		return errors.New("disk full")
	}
	s.rows = append(s.rows, row)
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

func column(n int) *screen.Screen {
	s := &screen.Screen{Image: []byte{0xff}, Format: "jpeg", Width: 400, Height: 2000, Widgets: []screen.Widget{}}
	for i := range n {
		y := float64(i * 60)
		s.Widgets = append(s.Widgets, screen.Widget{
			Bounds: screen.Bounds{XMin: 0, YMin: y, XMax: 400, YMax: y + 40},
			Type:   "textview",
			Text:   fmt.Sprintf("item %d", i),
		})
	}
	return s
}

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator(mapLoader{"a/1.jpg": column(20), "b/2.jpg": column(30)}, 0, 42)
	require.NoError(t, err)
	return ev
}

func TestEvaluateStaticPipeline(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	publisher := events.NewLoggingPublisher(nil)
	ev.Events = publisher

	sink := &memorySink{}
	images := []string{"a/1.jpg", "missing/3.jpg", "b/2.jpg"}
	summary, err := ev.Evaluate(context.Background(), StaticPipeline(), images, sink, false)
	require.NoError(t, err)

	want := len(mutate.All()) * 2 * len(DefaultCombos())
	require.Len(t, sink.rows, want)
	require.Equal(t, want, summary.Evaluations)
	require.Equal(t, want, publisher.Count(ports.EventScreenEvaluated))

	for _, r := range sink.rows {
		row, ok := r.(result.ScreenRow)
		require.True(t, ok)
		require.NotEqual(t, "missing/3.jpg", row.Image)
		require.Positive(t, row.Counts.TP+row.Counts.FN, row.Identity())
		if row.Mutation == mutate.DeleteWidgets {
			require.Positive(t, row.Counts.TP, row.Identity())
			require.Zero(t, row.Counts.FP, row.Identity())
			require.Zero(t, row.Counts.FN, row.Identity())
		}
	}
	require.Equal(t, mutate.DeleteWidgets, sink.rows[0].(result.ScreenRow).Mutation)
	require.Equal(t, "layout", sink.rows[0].(result.ScreenRow).Matcher)
	require.Equal(t, "full", sink.rows[1].(result.ScreenRow).Matcher)
}

func TestEvaluateIsDeterministicPerPipeline(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	images := []string{"a/1.jpg", "b/2.jpg"}

	first, second := &memorySink{}, &memorySink{}
	_, err := ev.Evaluate(context.Background(), StaticPipeline(), images, first, false)
	require.NoError(t, err)
	_, err = ev.Evaluate(context.Background(), StaticPipeline(), images, second, false)
	require.NoError(t, err)

	require.Len(t, second.rows, len(first.rows))
	for i := range first.rows {
		a, b := first.rows[i].(result.ScreenRow), second.rows[i].(result.ScreenRow)
		require.Equal(t, a.Identity(), b.Identity())
		require.Equal(t, a.Counts, b.Counts)
	}
}

func TestEvaluateAblationRowsCarryPipeline(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	p, err := Preset(PresetLayoutMatcher)
	require.NoError(t, err)

	sink := &memorySink{}
	_, err = ev.Evaluate(context.Background(), p, []string{"a/1.jpg"}, sink, true)
	require.NoError(t, err)
	require.Len(t, sink.rows, len(mutate.All()))
	for _, r := range sink.rows {
		row, ok := r.(result.AblationRow)
		require.True(t, ok)
		require.Equal(t, PresetLayoutMatcher, row.Pipeline)
		require.Equal(t, "layout", row.Matcher)
		require.Equal(t, PresetLayoutMatcher, row.Values()[0])
	}
}

func TestEvaluateSinkFailureIsFatal(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	sink := &memorySink{failOn: 2}
	_, err := ev.Evaluate(context.Background(), StaticPipeline(), []string{"a/1.jpg"}, sink, false)
	require.ErrorContains(t, err, "disk full")
	require.Len(t, sink.rows, 1)
}

func TestEvaluateHonoursCancellation(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memorySink{}
	_, err := ev.Evaluate(ctx, StaticPipeline(), []string{"a/1.jpg"}, sink, false)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, sink.rows)
}

func TestNewEvaluatorRequiresLoader(t *testing.T) {
	t.Parallel()

	_, err := NewEvaluator(nil, 0.1, 1)
	require.Error(t, err)

	ev, err := NewEvaluator(mapLoader{}, 0, 1)
	require.NoError(t, err)
	require.Equal(t, mutate.DefaultRatio, ev.Ratio)
}

func TestPresets(t *testing.T) {
	t.Parallel()

	require.Equal(t, config.KnownPipelines, PresetNames())

	tests := []struct {
		name        string
		matcher     string
		postprocess bool
		stripText   bool
	}{
		{name: PresetFull, matcher: "full", postprocess: true},
		{name: PresetNoPostprocess, matcher: "full"},
		{name: PresetNoOCR, matcher: "full", postprocess: true, stripText: true},
		{name: PresetLayoutMatcher, matcher: "layout", postprocess: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := Preset(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.name, p.Name)
			require.Len(t, p.Combos, 1)
			require.Equal(t, tt.matcher, p.Combos[0].MatcherName)
			require.Equal(t, tt.postprocess, p.Postprocess)
			require.Equal(t, tt.stripText, p.StripText)
		})
	}

	_, err := Presets([]string{PresetFull, "rq4"})
	require.ErrorContains(t, err, `unknown pipeline "rq4"`)
	require.ErrorContains(t, err, "full, no_postprocess, no_ocr, layout_matcher")

	ps, err := Presets([]string{PresetNoOCR, PresetFull, PresetNoOCR})
	require.NoError(t, err)
	require.Len(t, ps, 2)
	require.Equal(t, PresetNoOCR, ps[0].Name)
}

func TestStripTextClones(t *testing.T) {
	t.Parallel()

	s := column(3)
	out := stripText(s)
	for i := range out.Widgets {
		require.Empty(t, out.Widgets[i].Text)
		require.NotEmpty(t, s.Widgets[i].Text)
	}
}

func TestAblationRunner(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	pipelines, err := Presets([]string{PresetFull, PresetNoOCR})
	require.NoError(t, err)

	sinks := map[string]*memorySink{}
	summarySink := &memorySink{}
	runner := &AblationRunner{
		Evaluator: ev,
		OpenSink: func(name string) (ports.ResultSink, error) {
			s := &memorySink{}
			sinks[name] = s
			return s, nil
		},
		Summary: summarySink,
	}

	summaries, err := runner.Run(context.Background(), pipelines, []string{"a/1.jpg", "b/2.jpg"})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Len(t, sinks, 2)
	for name, s := range sinks {
		require.True(t, s.closed, name)
		require.Len(t, s.rows, len(mutate.All())*2, name)
	}

	require.Len(t, summarySink.rows, 2)
	first, ok := summarySink.rows[0].(result.PipelineSummary)
	require.True(t, ok)
	require.Equal(t, PresetFull, first.Pipeline)
	require.Equal(t, len(mutate.All())*2, first.Evaluations)
}

func TestAblationRunnerStopsOnSinkFactoryError(t *testing.T) {
	t.Parallel()

	pipelines, err := Presets([]string{PresetFull})
	require.NoError(t, err)

	summarySink := &memorySink{}
	runner := &AblationRunner{
		Evaluator: newEvaluator(t),
		OpenSink: func(string) (ports.ResultSink, error) {
			return nil, errors.New("read-only filesystem")
		},
		Summary: summarySink,
	}
	_, err = runner.Run(context.Background(), pipelines, []string{"a/1.jpg"})
	require.ErrorContains(t, err, "open sink for full")
	require.Empty(t, summarySink.rows)

	_, err = (&AblationRunner{}).Run(context.Background(), pipelines, nil)
	require.Error(t, err)
}
