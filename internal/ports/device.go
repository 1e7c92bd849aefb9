package ports

import (
	"context"
	"errors"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

// Device drives the app under test. Coordinates are screen pixels.
type Device interface {
	Launch(ctx context.Context, packageName, activity string) error
	Tap(ctx context.Context, x, y float64) error
	LongPress(ctx context.Context, x, y float64, hold time.Duration) error
	InputText(ctx context.Context, text string) error
	Swipe(ctx context.Context, x1, y1, x2, y2 float64, duration time.Duration) error
	Back(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Agent proposes the next action for a natural-language intent given the
// current screen. Conversation state persists between calls until Reset.
type Agent interface {
	Complete(ctx context.Context, current *screen.Screen, intent string) (image []byte, response string, err error)
	Reset()
}

// ErrAborted is returned by a Confirmer when the operator stops the run. It
// is fatal wherever it surfaces.
var ErrAborted = errors.New("operator aborted")

// Confirmer asks a human operator to act or to confirm a verdict. Waits have
// no timeout beyond ctx.
type Confirmer interface {
	// Await blocks until the operator acknowledges prompt.
	Await(ctx context.Context, prompt string) error
	// Confirm asks the operator to accept or reject a proposed verdict.
	Confirm(ctx context.Context, prompt string, proposed bool) (bool, error)
}
