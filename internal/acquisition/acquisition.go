// Package acquisition produces the mock and real screens compared at each
// step of a flow, either from a live device or from recorded captures.
package acquisition

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/flow"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

// Request identifies the transition to acquire.
type Request struct {
	ProcessDir   string
	Record       *flow.Record
	StepIndex    int
	Inconsistent bool
}

// Pair is the expected and observed screen after a step, plus the time the
// step's own action took to execute.
type Pair struct {
	Mock       *screen.Screen
	Real       *screen.Screen
	ActionTime time.Duration
}

// Source acquires screen pairs. Both screens of a returned pair are fully
// initialized.
type Source interface {
	// Setup prepares a process before its first step.
	Setup(ctx context.Context, processDir string, rec *flow.Record) error
	Acquire(ctx context.Context, req Request) (Pair, error)
	// Recapture observes the real screen again during recovery.
	Recapture(ctx context.Context, req Request) (*screen.Screen, error)
	// Live reports whether the source drives a device.
	Live() bool
}

// CaptureName returns the capture file name recorded for a step, defaulting
// to "<index>.jpg".
func CaptureName(rec *flow.Record, index int) string {
	if rec != nil && index >= 0 && index < len(rec.Steps) {
		if name := rec.Steps[index].Screenshot; name != "" {
			return filepath.Base(name)
		}
	}
	return strconv.Itoa(index) + ".jpg"
}

// MockPath locates the expected screen for a transition: the capture of the
// following step.
func MockPath(req Request) string {
	return filepath.Join(req.ProcessDir, CaptureName(req.Record, req.StepIndex+1))
}

func loadReady(ctx context.Context, loader ports.ScreenLoader, path string) (*screen.Screen, error) {
	if loader == nil {
		return nil, flowerrors.NewCaptureError("file", path, fmt.Errorf("no screen loader configured"))
	}
	s, err := loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if !s.Ready() {
		return nil, flowerrors.NewCaptureError("file", path, fmt.Errorf("screen is not fully initialized"))
	}
	return s, nil
}

func checkRequest(req Request) error {
	if req.Record == nil {
		return fmt.Errorf("request has no record")
	}
	if req.StepIndex < 0 || req.StepIndex >= req.Record.Transitions() {
		return fmt.Errorf("step %d outside the %d evaluated transitions", req.StepIndex, req.Record.Transitions())
	}
	return nil
}
