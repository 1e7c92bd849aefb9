package mutate

import (
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

// FilterDeleted drops predictions located on original widgets that overlap a
// deleted widget, unless they are part of the truth. Neighbours of a removed
// widget tend to be re-matched and flagged.
func FilterDeleted(pred, truth inconsistency.Set, s1, _ *screen.Screen) inconsistency.Set {
	var deleted []screen.Bounds
	for item := range truth {
		if item.Type == inconsistency.Missing {
			if b, ok := widgetBounds(s1, item.Index1); ok {
				deleted = append(deleted, b)
			}
		}
	}
	truePairs := truth.Pairs()
	return pred.Filter(func(item inconsistency.Inconsistency) bool {
		if _, ok := truePairs[item.Pair()]; ok {
			return true
		}
		b, ok := widgetBounds(s1, item.Index1)
		return !ok || !overlapsAny(b, deleted)
	})
}

// FilterInserted drops predictions located on mutated widgets that overlap an
// inserted widget, unless they are part of the truth.
func FilterInserted(pred, truth inconsistency.Set, _, s2 *screen.Screen) inconsistency.Set {
	var inserted []screen.Bounds
	for item := range truth {
		if item.Type == inconsistency.Spurious {
			if b, ok := widgetBounds(s2, item.Index2); ok {
				inserted = append(inserted, b)
			}
		}
	}
	truePairs := truth.Pairs()
	return pred.Filter(func(item inconsistency.Inconsistency) bool {
		if _, ok := truePairs[item.Pair()]; ok {
			return true
		}
		b, ok := widgetBounds(s2, item.Index2)
		return !ok || !overlapsAny(b, inserted)
	})
}

// FilterSwapped drops mirrored pairs between swapped widgets: a matcher that
// follows position pairs i with j, which reports the same swap twice.
func FilterSwapped(pred, truth inconsistency.Set, _, _ *screen.Screen) inconsistency.Set {
	swapped := make(map[int]struct{})
	for item := range truth {
		swapped[item.Index1] = struct{}{}
	}
	return pred.Filter(func(item inconsistency.Inconsistency) bool {
		if item.Index1 == item.Index2 {
			return true
		}
		_, a := swapped[item.Index1]
		_, b := swapped[item.Index2]
		return !(a && b)
	})
}

// FilterTextChanged drops bbox predictions where text was changed. New text
// shifts recognized box geometry without moving the widget.
func FilterTextChanged(pred, truth inconsistency.Set, _, _ *screen.Screen) inconsistency.Set {
	return dropTypeAtTruth(pred, truth, inconsistency.BBox)
}

// FilterTypeChanged drops text predictions where the widget class was changed.
func FilterTypeChanged(pred, truth inconsistency.Set, _, _ *screen.Screen) inconsistency.Set {
	return dropTypeAtTruth(pred, truth, inconsistency.Text)
}

func dropTypeAtTruth(pred, truth inconsistency.Set, t inconsistency.Type) inconsistency.Set {
	truePairs := truth.Pairs()
	return pred.Filter(func(item inconsistency.Inconsistency) bool {
		if item.Type != t {
			return true
		}
		_, ok := truePairs[item.Pair()]
		return !ok
	})
}

func widgetBounds(s *screen.Screen, idx int) (screen.Bounds, bool) {
	if s == nil || idx < 0 || idx >= len(s.Widgets) {
		return screen.Bounds{}, false
	}
	return s.Widgets[idx].Bounds, true
}

func overlapsAny(b screen.Bounds, others []screen.Bounds) bool {
	for _, o := range others {
		if b.Overlaps(o) {
			return true
		}
	}
	return false
}
