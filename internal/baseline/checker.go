package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

// DefaultBBoxIoU is the overlap below which matched boxes are reported as drifted.
const DefaultBBoxIoU = 0.8

// Checker classifies pairs by comparing widget attributes.
type Checker struct {
	BBoxIoU float64
}

// NewChecker returns an attribute checker with default thresholds.
func NewChecker() *Checker {
	return &Checker{BBoxIoU: DefaultBBoxIoU}
}

// Check implements ports.Checker.
func (c *Checker) Check(ctx context.Context, a, b *screen.Screen, pairs []inconsistency.Pair) (inconsistency.Set, time.Duration, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	out := inconsistency.NewSet()
	for _, p := range pairs {
		switch {
		case p.Index1 >= 0 && p.Index2 < 0:
			if p.Index1 >= len(a.Widgets) {
				return nil, 0, fmt.Errorf("pair %s: index out of range", p)
			}
			out.Add(inconsistency.Inconsistency{Index1: p.Index1, Index2: inconsistency.Absent, Type: inconsistency.Missing})
		case p.Index1 < 0 && p.Index2 >= 0:
			if p.Index2 >= len(b.Widgets) {
				return nil, 0, fmt.Errorf("pair %s: index out of range", p)
			}
			out.Add(inconsistency.Inconsistency{Index1: inconsistency.Absent, Index2: p.Index2, Type: inconsistency.Spurious})
		case p.Index1 >= 0 && p.Index2 >= 0:
			if p.Index1 >= len(a.Widgets) || p.Index2 >= len(b.Widgets) {
				return nil, 0, fmt.Errorf("pair %s: index out of range", p)
			}
			for _, t := range c.compare(a.Widgets[p.Index1], b.Widgets[p.Index2]) {
				out.Add(inconsistency.Inconsistency{Index1: p.Index1, Index2: p.Index2, Type: t})
			}
		}
	}
	return out, time.Since(start), nil
}

func (c *Checker) compare(wa, wb screen.Widget) []inconsistency.Type {
	var found []inconsistency.Type
	if wa.Bounds.IoU(wb.Bounds) < c.BBoxIoU {
		found = append(found, inconsistency.BBox)
	}
	if normalizeText(wa.Text) != normalizeText(wb.Text) {
		found = append(found, inconsistency.Text)
	}
	if wa.Type != wb.Type {
		found = append(found, inconsistency.WidgetType)
	}
	return found
}
