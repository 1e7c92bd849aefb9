package ports

import (
	"context"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

// Matcher computes widget correspondences between two screens. The score is
// the matcher's own similarity measure and elapsed is its self-reported
// running time.
type Matcher interface {
	Match(ctx context.Context, a, b *screen.Screen) (pairs []inconsistency.Pair, score float64, elapsed time.Duration, err error)
}

// Checker classifies matched and unmatched widgets into typed inconsistencies.
type Checker interface {
	Check(ctx context.Context, a, b *screen.Screen, pairs []inconsistency.Pair) (inconsistency.Set, time.Duration, error)
}

// Detector locates widgets on an encoded screenshot.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]screen.Widget, error)
}

// OCR recognizes text boxes on an encoded screenshot.
type OCR interface {
	Recognize(ctx context.Context, image []byte) ([]screen.TextBox, error)
}

// ScreenLoader reads a recorded capture, an encoded image with its sibling
// widget file. A missing capture is reported as a CaptureError wrapping
// ErrCaptureNotFound.
type ScreenLoader interface {
	Load(ctx context.Context, imagePath string) (*screen.Screen, error)
}

// ScreenBuilder turns a raw screenshot into a fully initialized screen by
// running detection and OCR.
type ScreenBuilder interface {
	Build(ctx context.Context, image []byte) (*screen.Screen, error)
}
