package acquisition

import (
	"context"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/flow"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	"github.com/alexisbeaulieu97/flowcheck/internal/recovery"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

// Interactive drives a live device with an operator in the loop. The real
// screen is captured from the device after each step. On every step except
// the inconsistent one the mock is forced to a copy of the real screen.
type Interactive struct {
	Device    ports.Device
	Builder   ports.ScreenBuilder
	Loader    ports.ScreenLoader
	Confirmer ports.Confirmer
	Logger    ports.Logger

	// last is the most recent real screen, used to resolve actions that
	// target the whole screen.
	last *screen.Screen
}

// Live implements Source.
func (s *Interactive) Live() bool { return true }

// Setup launches the app and waits for the operator to align the device.
func (s *Interactive) Setup(ctx context.Context, _ string, rec *flow.Record) error {
	if rec == nil {
		return fmt.Errorf("setup: record is nil")
	}
	s.last = nil
	if err := s.Device.Launch(ctx, rec.PackageName, rec.InitActivity); err != nil {
		return flowerrors.NewActionError("launch", err)
	}
	return s.Confirmer.Await(ctx, "Align phone screen, then continue.")
}

// Acquire implements Source.
func (s *Interactive) Acquire(ctx context.Context, req Request) (Pair, error) {
	if err := checkRequest(req); err != nil {
		return Pair{}, err
	}

	if !req.Inconsistent {
		actionTime, err := s.perform(ctx, req)
		if err != nil {
			return Pair{}, err
		}
		observed, err := s.Recapture(ctx, req)
		if err != nil {
			return Pair{}, err
		}
		return Pair{Mock: observed.Clone(), Real: observed, ActionTime: actionTime}, nil
	}

	// The recorded mock is read before the transition so the device has not
	// moved if the operator has to fix the dataset.
	mock, err := s.recordedMock(ctx, req)
	if err != nil {
		return Pair{}, err
	}
	if err := s.Confirmer.Await(ctx, "Trigger inconsistent transition, then continue."); err != nil {
		return Pair{}, err
	}
	observed, err := s.Recapture(ctx, req)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Mock: mock, Real: observed}, nil
}

// recordedMock loads the expected screen of the inconsistent step. A missing
// or incomplete capture asks the operator to intervene and is retried.
func (s *Interactive) recordedMock(ctx context.Context, req Request) (*screen.Screen, error) {
	path := MockPath(req)
	for {
		mock, err := loadReady(ctx, s.Loader, path)
		if err == nil {
			return mock, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		s.warn(ctx, "recorded mock unavailable", "step", req.StepIndex, "path", path, "error", err)
		if err := s.Confirmer.Await(ctx, fmt.Sprintf("Recorded screen %s is unavailable (%v). Fix the dataset, then continue.", path, err)); err != nil {
			return nil, err
		}
	}
}

// perform executes the step's own action and times it. A failed action is
// handed to the operator to carry out manually.
func (s *Interactive) perform(ctx context.Context, req Request) (time.Duration, error) {
	step := req.Record.Steps[req.StepIndex]

	action, err := recovery.ActionFromStep(step, s.last)
	if err == nil {
		start := time.Now()
		_, err = action.Execute(ctx, s.Device)
		elapsed := time.Since(start)
		if err == nil {
			return elapsed, s.Confirmer.Await(ctx, "Action executed. Continue?")
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	s.warn(ctx, "step action failed", "step", req.StepIndex, "action", step.Action, "error", err)
	return 0, s.Confirmer.Await(ctx, "Action failed, execute manually then continue.")
}

// Recapture takes a screenshot and runs detection and OCR on it. Failures
// ask the operator to intervene and retry until a screen is built or ctx is
// cancelled.
func (s *Interactive) Recapture(ctx context.Context, req Request) (*screen.Screen, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		built, err := s.capture(ctx)
		if err == nil {
			s.last = built
			return built, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		s.warn(ctx, "screen capture failed", "step", req.StepIndex, "error", err)
		if err := s.Confirmer.Await(ctx, fmt.Sprintf("Screen capture failed (%v). Fix the device, then continue.", err)); err != nil {
			return nil, err
		}
	}
}

func (s *Interactive) capture(ctx context.Context) (*screen.Screen, error) {
	image, err := s.Device.Screenshot(ctx)
	if err != nil {
		return nil, flowerrors.NewCaptureError("device", "screenshot", err)
	}
	built, err := s.Builder.Build(ctx, image)
	if err != nil {
		return nil, err
	}
	if !built.Ready() {
		return nil, flowerrors.NewCaptureError("device", "screenshot", fmt.Errorf("screen is not fully initialized"))
	}
	return built, nil
}

func (s *Interactive) warn(ctx context.Context, msg string, fields ...interface{}) {
	if s.Logger != nil {
		s.Logger.Warn(ctx, msg, fields...)
	}
}
