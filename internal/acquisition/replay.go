package acquisition

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/flow"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

// DefaultRealSubdir holds replayed real captures inside a process directory.
const DefaultRealSubdir = "real"

// Replay serves both screens from disk. The mock is the recorded capture of
// the next step and the real screen is the capture of the same step under
// RealSubdir.
type Replay struct {
	Loader     ports.ScreenLoader
	RealSubdir string
}

// NewReplay builds a replay source.
func NewReplay(loader ports.ScreenLoader, realSubdir string) *Replay {
	if realSubdir == "" {
		realSubdir = DefaultRealSubdir
	}
	return &Replay{Loader: loader, RealSubdir: realSubdir}
}

// Setup implements Source.
func (r *Replay) Setup(context.Context, string, *flow.Record) error {
	return nil
}

// Live implements Source.
func (r *Replay) Live() bool { return false }

// Acquire implements Source.
func (r *Replay) Acquire(ctx context.Context, req Request) (Pair, error) {
	if err := checkRequest(req); err != nil {
		return Pair{}, err
	}
	mock, err := loadReady(ctx, r.Loader, MockPath(req))
	if err != nil {
		return Pair{}, err
	}
	observed, err := r.Recapture(ctx, req)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Mock: mock, Real: observed}, nil
}

// Recapture implements Source. The real screen of a replayed step never
// changes, so it is read again from disk.
func (r *Replay) Recapture(ctx context.Context, req Request) (*screen.Screen, error) {
	return loadReady(ctx, r.Loader, r.RealPath(req))
}

// RealPath locates the replayed real capture of a step, "<index>.jpg" under
// the real subdirectory. Unlike MockPath it ignores Step.Screenshot: that
// name belongs to the recorded mock captures, while real captures are always
// numbered by step.
func (r *Replay) RealPath(req Request) string {
	return filepath.Join(req.ProcessDir, r.RealSubdir, strconv.Itoa(req.StepIndex)+".jpg")
}
