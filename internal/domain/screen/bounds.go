package screen

import (
	"encoding/json"
	"fmt"
	"math"
)

// Bounds is an axis-aligned rectangle expressed as [x_min, y_min, x_max, y_max].
type Bounds struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// NewBounds builds Bounds from a four-element slice.
func NewBounds(values []float64) (Bounds, error) {
	if len(values) != 4 {
		return Bounds{}, fmt.Errorf("bounds require 4 values, got %d", len(values))
	}
	return Bounds{XMin: values[0], YMin: values[1], XMax: values[2], YMax: values[3]}, nil
}

// Width returns the horizontal extent, never negative.
func (b Bounds) Width() float64 {
	return math.Max(0, b.XMax-b.XMin)
}

// Height returns the vertical extent, never negative.
func (b Bounds) Height() float64 {
	return math.Max(0, b.YMax-b.YMin)
}

// Area returns the rectangle area.
func (b Bounds) Area() float64 {
	return b.Width() * b.Height()
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() (float64, float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// Contains reports whether the point lies inside the rectangle, edges included.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// Intersection returns the overlapping rectangle. The result has zero area
// when the inputs are disjoint.
func (b Bounds) Intersection(other Bounds) Bounds {
	return Bounds{
		XMin: math.Max(b.XMin, other.XMin),
		YMin: math.Max(b.YMin, other.YMin),
		XMax: math.Min(b.XMax, other.XMax),
		YMax: math.Min(b.YMax, other.YMax),
	}
}

// Overlaps reports whether the intersection area is strictly positive.
func (b Bounds) Overlaps(other Bounds) bool {
	return b.Intersection(other).Area() > 0
}

// IoU returns intersection-over-union in [0, 1].
func (b Bounds) IoU(other Bounds) float64 {
	inter := b.Intersection(other).Area()
	if inter <= 0 {
		return 0
	}
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Translate shifts the rectangle by the given offsets.
func (b Bounds) Translate(dx, dy float64) Bounds {
	return Bounds{XMin: b.XMin + dx, YMin: b.YMin + dy, XMax: b.XMax + dx, YMax: b.YMax + dy}
}

// Slice returns the bounds as [x_min, y_min, x_max, y_max].
func (b Bounds) Slice() []float64 {
	return []float64{b.XMin, b.YMin, b.XMax, b.YMax}
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.XMin, b.YMin, b.XMax, b.YMax)
}

// MarshalJSON encodes bounds as a four-element array.
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Slice())
}

// UnmarshalJSON decodes bounds from a four-element array.
func (b *Bounds) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decode bounds: %w", err)
	}
	parsed, err := NewBounds(values)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
