// Package mutate applies labelled widget-level mutations to screens. Each
// operator edits a copy of a screen and returns the inconsistencies it
// introduced, indexed against the original (Index1) and mutated (Index2)
// widget lists.
package mutate

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/scoring"
)

// DefaultRatio is the share of widgets each operator touches.
const DefaultRatio = 0.05

// Operator names.
const (
	DeleteWidgets     = "delete_widgets"
	InsertWidgets     = "insert_widgets"
	SwapWidgets       = "swap_widgets"
	ChangeWidgetsText = "change_widgets_text"
	ChangeWidgetsType = "change_widgets_type"
)

// ApplyFunc mutates s in place and returns the ground truth it introduced.
type ApplyFunc func(s *screen.Screen, ratio float64, rng *rand.Rand) inconsistency.Set

// Mutation pairs an operator with the postprocessing filter that removes
// predictions the operator makes ambiguous.
type Mutation struct {
	Name        string
	Apply       ApplyFunc
	Postprocess scoring.Filter
}

// All returns every operator in evaluation order.
func All() []Mutation {
	return []Mutation{
		{Name: DeleteWidgets, Apply: Delete, Postprocess: FilterDeleted},
		{Name: InsertWidgets, Apply: Insert, Postprocess: FilterInserted},
		{Name: SwapWidgets, Apply: Swap, Postprocess: FilterSwapped},
		{Name: ChangeWidgetsText, Apply: ChangeText, Postprocess: FilterTextChanged},
		{Name: ChangeWidgetsType, Apply: ChangeType, Postprocess: FilterTypeChanged},
	}
}

// Lookup returns the named operator.
func Lookup(name string) (Mutation, error) {
	for _, m := range All() {
		if m.Name == name {
			return m, nil
		}
	}
	return Mutation{}, fmt.Errorf("unknown mutation %q", name)
}

// Mutate clones s, applies m to the clone and returns it with its truth.
func Mutate(s *screen.Screen, m Mutation, ratio float64, rng *rand.Rand) (*screen.Screen, inconsistency.Set) {
	out := s.Clone()
	if out.Widgets == nil {
		out.Widgets = []screen.Widget{}
	}
	return out, m.Apply(out, ratio, rng)
}

// count is the number of widgets an operator touches: at least one when the
// screen has any, never more than n.
func count(n int, ratio float64) int {
	if n == 0 {
		return 0
	}
	k := int(math.Round(float64(n) * ratio))
	return min(max(k, 1), n)
}

// pick returns k distinct indices in ascending order.
func pick(n, k int, rng *rand.Rand) []int {
	chosen := rng.Perm(n)[:k]
	slices.Sort(chosen)
	return chosen
}

// Delete removes widgets. Each removed widget is missing from the mutated
// screen.
func Delete(s *screen.Screen, ratio float64, rng *rand.Rand) inconsistency.Set {
	truth := inconsistency.NewSet()
	n := len(s.Widgets)
	removed := pick(n, count(n, ratio), rng)

	kept := make([]screen.Widget, 0, n-len(removed))
	for i, w := range s.Widgets {
		if slices.Contains(removed, i) {
			truth.Add(inconsistency.Inconsistency{Index1: i, Index2: inconsistency.Absent, Type: inconsistency.Missing})
			continue
		}
		kept = append(kept, w)
	}
	s.Widgets = kept
	return truth
}

// Insert appends copies of existing widgets shifted below their source. Each
// copy is spurious on the mutated screen. Appending keeps the indices of the
// original widgets stable.
func Insert(s *screen.Screen, ratio float64, rng *rand.Rand) inconsistency.Set {
	truth := inconsistency.NewSet()
	n := len(s.Widgets)
	for _, src := range pick(n, count(n, ratio), rng) {
		w := s.Widgets[src]
		dy := w.Bounds.Height()
		if w.Bounds.YMax+dy > float64(s.Height) {
			dy = -dy
		}
		w.Bounds = w.Bounds.Translate(0, dy)
		s.Widgets = append(s.Widgets, w)
		truth.Add(inconsistency.Inconsistency{Index1: inconsistency.Absent, Index2: len(s.Widgets) - 1, Type: inconsistency.Spurious})
	}
	return truth
}

// Swap exchanges the positions of widget pairs. Both widgets of a pair keep
// their index and gain a bbox inconsistency.
func Swap(s *screen.Screen, ratio float64, rng *rand.Rand) inconsistency.Set {
	truth := inconsistency.NewSet()
	n := len(s.Widgets)
	if n < 2 {
		return truth
	}
	pairs := max(count(n, ratio)/2, 1)
	order := rng.Perm(n)
	for p := 0; p < pairs && 2*p+1 < n; p++ {
		i, j := order[2*p], order[2*p+1]
		s.Widgets[i].Bounds, s.Widgets[j].Bounds = s.Widgets[j].Bounds, s.Widgets[i].Bounds
		truth.Add(inconsistency.Inconsistency{Index1: i, Index2: i, Type: inconsistency.BBox})
		truth.Add(inconsistency.Inconsistency{Index1: j, Index2: j, Type: inconsistency.BBox})
	}
	return truth
}

// ChangeText rewrites widget text.
func ChangeText(s *screen.Screen, ratio float64, rng *rand.Rand) inconsistency.Set {
	truth := inconsistency.NewSet()
	n := len(s.Widgets)
	for _, i := range pick(n, count(n, ratio), rng) {
		s.Widgets[i].Text = alteredText(s.Widgets[i].Text, rng)
		truth.Add(inconsistency.Inconsistency{Index1: i, Index2: i, Type: inconsistency.Text})
	}
	return truth
}

// ChangeType assigns a different widget class.
func ChangeType(s *screen.Screen, ratio float64, rng *rand.Rand) inconsistency.Set {
	truth := inconsistency.NewSet()
	n := len(s.Widgets)
	for _, i := range pick(n, count(n, ratio), rng) {
		s.Widgets[i].Type = otherType(s.Widgets[i].Type, rng)
		truth.Add(inconsistency.Inconsistency{Index1: i, Index2: i, Type: inconsistency.WidgetType})
	}
	return truth
}

var replacementWords = []string{"lorem", "ipsum", "dolor", "amet", "consectetur", "adipiscing"}

func alteredText(text string, rng *rand.Rand) string {
	for {
		candidate := replacementWords[rng.IntN(len(replacementWords))]
		if !strings.EqualFold(candidate, text) {
			return candidate
		}
	}
}

// widgetTypes is the detector's class vocabulary.
var widgetTypes = []string{"button", "checkbox", "edittext", "image", "imagebutton", "radiobutton", "switch", "textview"}

func otherType(current string, rng *rand.Rand) string {
	for {
		candidate := widgetTypes[rng.IntN(len(widgetTypes))]
		if candidate != current {
			return candidate
		}
	}
}
