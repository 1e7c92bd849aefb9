package screens

import (
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/flowcheck/internal/baseline"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

// Preset names.
const (
	PresetFull          = "full"
	PresetNoPostprocess = "no_postprocess"
	PresetNoOCR         = "no_ocr"
	PresetLayoutMatcher = "layout_matcher"
)

// Combo is one matcher/checker pairing evaluated per screen.
type Combo struct {
	MatcherName string
	CheckerName string
	Matcher     ports.Matcher
	Checker     ports.Checker
}

// Pipeline is a named evaluation configuration.
type Pipeline struct {
	Name   string
	Combos []Combo
	// Postprocess applies the mutation-aware filter to predictions.
	Postprocess bool
	// StripText clears recognized text from both screens before matching.
	StripText bool
}

// DefaultCombos crosses the layout and full baseline matchers with the
// baseline checker.
func DefaultCombos() []Combo {
	checker := baseline.NewChecker()
	return []Combo{
		{MatcherName: "layout", CheckerName: "baseline", Matcher: baseline.NewMatcher(0), Checker: checker},
		{MatcherName: "full", CheckerName: "baseline", Matcher: baseline.NewMatcher(0.5), Checker: checker},
	}
}

// StaticPipeline is the configuration of the screen-pair evaluator.
func StaticPipeline() Pipeline {
	return Pipeline{Name: "screens", Combos: DefaultCombos(), Postprocess: true}
}

var presetNames = []string{PresetFull, PresetNoPostprocess, PresetNoOCR, PresetLayoutMatcher}

// PresetNames lists the ablation presets in their canonical order.
func PresetNames() []string {
	return append([]string(nil), presetNames...)
}

// Preset returns the named ablation pipeline.
func Preset(name string) (Pipeline, error) {
	checker := baseline.NewChecker()
	full := Combo{MatcherName: "full", CheckerName: "baseline", Matcher: baseline.NewMatcher(0.5), Checker: checker}

	switch name {
	case PresetFull:
		return Pipeline{Name: name, Combos: []Combo{full}, Postprocess: true}, nil
	case PresetNoPostprocess:
		return Pipeline{Name: name, Combos: []Combo{full}}, nil
	case PresetNoOCR:
		return Pipeline{Name: name, Combos: []Combo{full}, Postprocess: true, StripText: true}, nil
	case PresetLayoutMatcher:
		layout := Combo{MatcherName: "layout", CheckerName: "baseline", Matcher: baseline.NewMatcher(0), Checker: checker}
		return Pipeline{Name: name, Combos: []Combo{layout}, Postprocess: true}, nil
	}
	return Pipeline{}, fmt.Errorf("unknown pipeline %q (valid: %s)", name, strings.Join(presetNames, ", "))
}

// Presets resolves names in order. Duplicates are kept once.
func Presets(names []string) ([]Pipeline, error) {
	seen := make(map[string]bool, len(names))
	out := make([]Pipeline, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		p, err := Preset(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func stripText(s *screen.Screen) *screen.Screen {
	out := s.Clone()
	for i := range out.Widgets {
		out.Widgets[i].Text = ""
	}
	return out
}
