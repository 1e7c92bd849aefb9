// Package recovery implements bounded-retry action completion for a step
// whose observed transition diverged from the expected flow.
package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/flow"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

// DefaultMaxAttempts bounds an episode when no limit is configured.
const DefaultMaxAttempts = 3

// State is the recovery state of a step.
type State int

const (
	StateNormal State = iota
	StateDetected
	StateRecovering
	StateAccepted
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateDetected:
		return "detected"
	case StateRecovering:
		return "recovering"
	case StateAccepted:
		return "accepted"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CaptureFunc acquires the current observed screen.
type CaptureFunc func(ctx context.Context) (*screen.Screen, error)

// Episode describes one recovery run for an inconsistent step.
type Episode struct {
	// Scope groups artifacts, typically "<package>-<process>".
	Scope     string
	StepIndex int
	Step      flow.Step
	Capture   CaptureFunc
	Proposer  Proposer
	// Revert backs out of the divergent screen before the first attempt.
	Revert bool
}

// Attempt records a single try.
type Attempt struct {
	Number    int
	Action    string
	Response  string
	Candidate bool
	Verdict   bool
	Err       error
}

// Outcome summarises an episode.
type Outcome struct {
	State    State
	Attempts []Attempt
}

// Verdicts lists the final verdict of every attempt.
func (o Outcome) Verdicts() []bool {
	out := make([]bool, len(o.Attempts))
	for i, a := range o.Attempts {
		out[i] = a.Verdict
	}
	return out
}

// Retries is the number of attempts made.
func (o Outcome) Retries() int {
	return len(o.Attempts)
}

// Completed is the verdict of the last attempt.
func (o Outcome) Completed() bool {
	return len(o.Attempts) > 0 && o.Attempts[len(o.Attempts)-1].Verdict
}

// Result maps the outcome to its persisted form.
func (o Outcome) Result() result.Outcome {
	if o.State == StateNormal {
		return result.OutcomeNotApplicable
	}
	return result.OutcomeOf(o.Completed())
}

// Engine runs recovery episodes.
type Engine struct {
	Device    ports.Device
	Confirmer ports.Confirmer
	Artifacts ports.ArtifactWriter
	Events    ports.EventPublisher
	Logger    ports.Logger

	MaxAttempts int
	MinIoU      float64
}

func (e *Engine) maxAttempts() int {
	if e.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return e.MaxAttempts
}

// Recover runs the episode to a terminal state. Attempt failures are
// contained. Cancellation, operator abort and confirmer failures are
// returned, and the outcome must then be discarded.
func (e *Engine) Recover(ctx context.Context, ep Episode) (Outcome, error) {
	out := Outcome{State: StateDetected}
	if ep.Proposer != nil {
		defer ep.Proposer.Reset()
	}

	e.publish(ctx, ports.EventRecoveryStarted, map[string]interface{}{
		"step": ep.StepIndex, "action": ep.Step.Action, "max_attempts": e.maxAttempts(),
	})

	if ep.Revert {
		if err := e.revert(ctx); err != nil {
			return out, err
		}
	}

	out.State = StateRecovering
	for n := 1; n <= e.maxAttempts(); n++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		attempt, err := e.attempt(ctx, ep, n)
		if err != nil {
			return out, err
		}
		out.Attempts = append(out.Attempts, attempt)

		e.publish(ctx, ports.EventRecoveryAttempt, map[string]interface{}{
			"step": ep.StepIndex, "attempt": n, "action": attempt.Action,
			"candidate": attempt.Candidate, "verdict": attempt.Verdict,
		})
		if attempt.Err != nil {
			e.warn(ctx, "recovery attempt failed", "step", ep.StepIndex, "attempt", n, "error", attempt.Err)
		}
		if attempt.Verdict {
			out.State = StateAccepted
			break
		}
	}
	if out.State != StateAccepted {
		out.State = StateExhausted
	}

	e.publish(ctx, ports.EventRecoveryFinished, map[string]interface{}{
		"step": ep.StepIndex, "state": out.State.String(), "retries": out.Retries(),
	})
	return out, nil
}

func (e *Engine) revert(ctx context.Context) error {
	if e.Device != nil {
		if err := e.Device.Back(ctx); err != nil {
			e.warn(ctx, "backtrack failed", "error", err)
		}
	}
	if e.Confirmer != nil {
		if err := e.Confirmer.Await(ctx, "Confirm backtrack complete, then continue."); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// attempt returns an error only when the episode must stop: cancellation,
// operator abort or a failed confirmation.
func (e *Engine) attempt(ctx context.Context, ep Episode, n int) (Attempt, error) {
	a := Attempt{Number: n}

	if ep.Capture == nil {
		a.Err = errors.New("no capture source")
		return a, nil
	}
	current, err := ep.Capture(ctx)
	if err != nil {
		a.Err = fmt.Errorf("capture: %w", err)
		return a, stopErr(ctx, err)
	}

	if ep.Proposer == nil {
		a.Err = ErrNoProposal
		return a, nil
	}
	proposal, err := ep.Proposer.Propose(ctx, current, ep.Step)
	if err != nil {
		a.Err = fmt.Errorf("propose: %w", err)
		return a, stopErr(ctx, err)
	}
	a.Response = proposal.Response
	e.saveArtifacts(ctx, ep, proposal)

	calls, err := ParseCalls(proposal.Response)
	if err != nil {
		a.Err = fmt.Errorf("parse: %w", err)
		return a, nil
	}

	// Only the first action is executed.
	if len(calls) == 0 {
		a.Err = errors.New("response contains no action")
		return a, nil
	}
	action, err := NewTranslator(current).Translate(calls[0])
	if err != nil {
		a.Err = err
		return a, nil
	}
	a.Action = action.Name()

	device := e.Device
	if device == nil {
		device = &NopDevice{}
	}
	executed, err := action.Execute(ctx, device)
	if err != nil {
		a.Err = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return a, ctxErr
		}
	} else {
		a.Candidate = Accept(ep.Step, action, executed, e.MinIoU)
	}

	a.Verdict = a.Candidate
	if e.Confirmer != nil {
		prompt := fmt.Sprintf("Action completion attempt %d/%d, result = %t. Accept?", n, e.maxAttempts(), a.Candidate)
		verdict, err := e.Confirmer.Confirm(ctx, prompt, a.Candidate)
		if err != nil {
			return a, err
		}
		a.Verdict = verdict
	}
	return a, nil
}

// stopErr returns the error that ends the episode, if err is one.
func stopErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ports.ErrAborted) {
		return err
	}
	return nil
}

func (e *Engine) saveArtifacts(ctx context.Context, ep Episode, p Proposal) {
	if e.Artifacts == nil {
		return
	}
	if err := e.Artifacts.AppendTranscript(ctx, ep.Scope, ep.StepIndex, p.Response); err != nil {
		e.warn(ctx, "write recovery transcript", "error", err)
	}
	if len(p.Image) > 0 {
		if err := e.Artifacts.WriteAttemptImage(ctx, ep.Scope, ep.StepIndex, p.Image); err != nil {
			e.warn(ctx, "write recovery image", "error", err)
		}
	}
}

// Accept reports whether an executed action completes the recorded step:
// same action name, same number of targets, and every recorded target
// overlapping its executed counterpart with at least minIoU.
func Accept(step flow.Step, action Action, executed []screen.Bounds, minIoU float64) bool {
	if action == nil || action.Name() != step.Action {
		return false
	}
	declared := step.TargetBounds()
	if len(declared) != len(executed) {
		return false
	}
	for i := range declared {
		if !declared[i].Overlaps(executed[i]) {
			return false
		}
		if declared[i].IoU(executed[i]) < minIoU {
			return false
		}
	}
	return true
}

func (e *Engine) warn(ctx context.Context, msg string, fields ...interface{}) {
	if e.Logger != nil {
		e.Logger.Warn(ctx, msg, fields...)
	}
}

func (e *Engine) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	publishEvent(ctx, e.Events, e.Logger, eventType, payload)
}
