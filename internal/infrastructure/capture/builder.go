package capture

import (
	"context"
	"errors"
	"strings"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

const sourceDevice = "device"

// Builder runs detection and OCR over a raw screenshot.
type Builder struct {
	Detector ports.Detector
	OCR      ports.OCR
}

// NewBuilder returns a Builder. Either service may be nil, in which case the
// screen has no widgets or no text respectively.
func NewBuilder(detector ports.Detector, ocr ports.OCR) *Builder {
	return &Builder{Detector: detector, OCR: ocr}
}

// Build implements ports.ScreenBuilder.
func (b *Builder) Build(ctx context.Context, image []byte) (*screen.Screen, error) {
	if len(image) == 0 {
		return nil, flowerrors.NewCaptureError(sourceDevice, "screenshot", errors.New("empty screenshot"))
	}
	s, err := Decode(image)
	if err != nil {
		return nil, flowerrors.NewCaptureError(sourceDevice, "screenshot", err)
	}

	widgets := []screen.Widget{}
	if b.Detector != nil {
		detected, err := b.Detector.Detect(ctx, image)
		if err != nil {
			return nil, flowerrors.NewCaptureError(sourceDevice, "detect", err)
		}
		widgets = append(widgets, detected...)
	}
	if b.OCR != nil && len(widgets) > 0 {
		texts, err := b.OCR.Recognize(ctx, image)
		if err != nil {
			return nil, flowerrors.NewCaptureError(sourceDevice, "ocr", err)
		}
		AttachText(widgets, texts)
	}
	s.Widgets = widgets
	return s, nil
}

// AttachText assigns each text box to the innermost widget containing its
// centre. Several boxes on one widget are joined with a space in input order.
func AttachText(widgets []screen.Widget, texts []screen.TextBox) {
	s := &screen.Screen{Widgets: widgets}
	parts := make([][]string, len(widgets))
	for _, tb := range texts {
		cx, cy := tb.Bounds.Center()
		i := s.WidgetAt(cx, cy)
		if i < 0 {
			continue
		}
		parts[i] = append(parts[i], strings.TrimSpace(tb.Text))
	}
	for i, p := range parts {
		if len(p) > 0 {
			widgets[i].Text = strings.Join(p, " ")
		}
	}
}
