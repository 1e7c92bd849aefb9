package screen

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/zeebo/blake3"
)

// Widget is a detected UI element on a screen.
type Widget struct {
	Bounds Bounds `json:"bounds"`
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
}

// TextBox is a single OCR result.
type TextBox struct {
	Bounds Bounds
	Text   string
}

// Screen is a captured UI state: an encoded image plus its widget set.
// Screens are read-only once detection and OCR have run.
type Screen struct {
	Image   []byte
	Format  string
	Width   int
	Height  int
	Widgets []Widget
}

// Ready reports whether the screen has decoded dimensions and a widget set.
func (s *Screen) Ready() bool {
	return s != nil && s.Width > 0 && s.Height > 0 && s.Widgets != nil
}

// Clone returns a deep copy sharing no memory with the receiver.
func (s *Screen) Clone() *Screen {
	if s == nil {
		return nil
	}
	out := &Screen{
		Format: s.Format,
		Width:  s.Width,
		Height: s.Height,
	}
	if s.Image != nil {
		out.Image = append([]byte(nil), s.Image...)
	}
	if s.Widgets != nil {
		out.Widgets = make([]Widget, len(s.Widgets))
		copy(out.Widgets, s.Widgets)
	}
	return out
}

// Full returns bounds covering the entire screen.
func (s *Screen) Full() Bounds {
	return Bounds{XMax: float64(s.Width), YMax: float64(s.Height)}
}

// WidgetAt returns the index of the smallest widget containing the point, or -1.
func (s *Screen) WidgetAt(x, y float64) int {
	best := -1
	bestArea := math.Inf(1)
	for i, w := range s.Widgets {
		if !w.Bounds.Contains(x, y) {
			continue
		}
		if area := w.Bounds.Area(); area < bestArea {
			best = i
			bestArea = area
		}
	}
	return best
}

// Fingerprint returns a BLAKE3 digest over the image bytes and widget set,
// used to tie visualization artifacts back to the exact inputs scored.
func (s *Screen) Fingerprint() string {
	if s == nil {
		return ""
	}
	h := blake3.New()
	_, _ = h.Write(s.Image)

	var num [8]byte
	for _, w := range s.Widgets {
		for _, v := range w.Bounds.Slice() {
			binary.LittleEndian.PutUint64(num[:], math.Float64bits(v))
			_, _ = h.Write(num[:])
		}
		_, _ = h.Write([]byte(w.Type))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(w.Text))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
