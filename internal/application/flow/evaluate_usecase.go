// Package flow evaluates recorded interaction flows step by step: each
// transition is acquired, scored, recovered when it is the inconsistent one,
// and written as a result row.
package flow

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/alexisbeaulieu97/flowcheck/internal/acquisition"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/flow"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	"github.com/alexisbeaulieu97/flowcheck/internal/recovery"
	"github.com/alexisbeaulieu97/flowcheck/internal/scoring"
)

// RecordLoader reads the inputs of one process directory.
type RecordLoader interface {
	LoadRecord(ctx context.Context, dir string) (*flow.Record, error)
	// LoadRetryResponses returns recorded agent responses keyed by step
	// index. A process without recorded responses yields an empty map.
	LoadRetryResponses(ctx context.Context, dir string) (map[int][]string, error)
}

// Scorer scores a mock/real pair.
type Scorer interface {
	Score(ctx context.Context, mock, actual *screen.Screen) (scoring.Outcome, error)
}

// Dependencies are the collaborators of the use case. Agent is nil when
// recovery proposals come from recorded responses.
type Dependencies struct {
	Loader    RecordLoader
	Source    acquisition.Source
	Scorer    Scorer
	Recovery  *recovery.Engine
	Agent     ports.Agent
	Sink      ports.ResultSink
	Artifacts ports.ArtifactWriter
	Logger    ports.Logger
	Events    ports.EventPublisher
}

// Options tune a run.
type Options struct {
	Seed               uint64
	InconsistencyIndex *int
	SkipVisualize      bool
}

// Summary counts what a run produced.
type Summary struct {
	Processes int
	Failed    int
	Rows      int
	Skipped   int
	Accepted  int
	Exhausted int
}

// EvaluateUseCase runs the flow evaluation over a set of processes.
type EvaluateUseCase struct {
	deps Dependencies
	opts Options
}

// NewEvaluateUseCase constructs an EvaluateUseCase with dependencies injected.
func NewEvaluateUseCase(deps Dependencies, opts Options) (*EvaluateUseCase, error) {
	if deps.Loader == nil || deps.Source == nil || deps.Scorer == nil || deps.Sink == nil {
		return nil, errors.New("flow evaluation requires a loader, a screen source, a scorer and a sink")
	}
	if deps.Recovery == nil {
		deps.Recovery = &recovery.Engine{Logger: deps.Logger, Events: deps.Events}
	}
	return &EvaluateUseCase{deps: deps, opts: opts}, nil
}

// Run evaluates every process directory in order. A process that cannot be
// loaded or set up is reported and skipped. The only errors returned are
// cancellation, operator abort and sink failures.
func (u *EvaluateUseCase) Run(ctx context.Context, processDirs []string) (Summary, error) {
	var summary Summary
	rng := flow.NewRunRand(u.opts.Seed)

	u.info(ctx, "starting flow evaluation", "processes", len(processDirs), "live", u.deps.Source.Live())
	u.publish(ctx, ports.EventRunStarted, map[string]interface{}{
		"processes": len(processDirs),
		"seed":      u.opts.Seed,
		"live":      u.deps.Source.Live(),
	})

	for i, dir := range processDirs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processes++

		err := u.runProcess(ctx, dir, i, len(processDirs), rng, &summary)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}
		var fatal *sinkError
		if errors.As(err, &fatal) {
			return summary, fatal.err
		}
		if errors.Is(err, ports.ErrAborted) {
			u.warn(ctx, "run aborted by operator", "process", dir)
			return summary, err
		}

		summary.Failed++
		u.logError(ctx, "process failed", "process", dir, "error", err)
		u.publish(ctx, ports.EventProcessFailed, map[string]interface{}{
			"process": filepath.Base(dir),
			"error":   err.Error(),
		})
	}

	u.publish(ctx, ports.EventRunCompleted, map[string]interface{}{
		"processes": summary.Processes,
		"failed":    summary.Failed,
		"rows":      summary.Rows,
		"skipped":   summary.Skipped,
	})
	u.info(ctx, "flow evaluation complete", "rows", summary.Rows, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

type sinkError struct{ err error }

func (e *sinkError) Error() string { return e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

func (u *EvaluateUseCase) runProcess(ctx context.Context, dir string, position, total int, rng *rand.Rand, summary *Summary) error {
	rec, err := u.deps.Loader.LoadRecord(ctx, dir)
	if err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	retries, err := u.deps.Loader.LoadRetryResponses(ctx, dir)
	if err != nil {
		return err
	}

	process := filepath.Base(dir)
	inconsistent := flow.SelectInconsistencyIndex(rec, u.opts.InconsistencyIndex, rng)
	scope := rec.PackageName + "-" + process

	u.info(ctx, "evaluating process",
		"position", fmt.Sprintf("%d/%d", position+1, total),
		"package", rec.PackageName, "process", process, "inconsistent_step", inconsistent)
	u.publish(ctx, ports.EventProcessStarted, map[string]interface{}{
		"package":           rec.PackageName,
		"process":           process,
		"steps":             rec.Transitions(),
		"inconsistent_step": inconsistent,
	})

	if err := u.deps.Source.Setup(ctx, dir, rec); err != nil {
		return fmt.Errorf("setup %s: %w", process, err)
	}

	for step := 0; step < rec.Transitions(); step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := acquisition.Request{
			ProcessDir:   dir,
			Record:       rec,
			StepIndex:    step,
			Inconsistent: step == inconsistent,
		}
		row, ok, err := u.runStep(ctx, req, process, scope, retries[step])
		if err != nil {
			return err
		}
		if !ok {
			summary.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := u.deps.Sink.Write(ctx, row); err != nil {
			return &sinkError{err: fmt.Errorf("write row %s: %w", row.Identity(), err)}
		}
		summary.Rows++
		switch row.Recovery {
		case result.OutcomeCompleted:
			summary.Accepted++
		case result.OutcomeFailed:
			summary.Exhausted++
		}
		u.publish(ctx, ports.EventStepCompleted, map[string]interface{}{
			"id":           row.Identity(),
			"ground_truth": row.GroundTruth,
			"is_completed": string(row.Recovery),
			"retries":      row.Retries,
		})

		// A live device has diverged from the recorded flow after the
		// inconsistent step, so later steps cannot be acquired.
		if req.Inconsistent && u.deps.Source.Live() {
			break
		}
	}

	u.publish(ctx, ports.EventProcessCompleted, map[string]interface{}{
		"package": rec.PackageName,
		"process": process,
	})
	return nil
}

// runStep returns ok=false when the step is skipped. Errors are returned
// only for cancellation and operator abort.
func (u *EvaluateUseCase) runStep(ctx context.Context, req acquisition.Request, process, scope string, responses []string) (result.FlowRow, bool, error) {
	rec := req.Record
	step := rec.Steps[req.StepIndex]
	u.debug(ctx, "evaluating step", "process", process, "step", req.StepIndex, "description", step.Description)
	u.publish(ctx, ports.EventStepStarted, map[string]interface{}{
		"process": process,
		"step":    req.StepIndex,
		"action":  step.Action,
	})

	pair, err := u.deps.Source.Acquire(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result.FlowRow{}, false, ctxErr
		}
		if errors.Is(err, ports.ErrAborted) {
			return result.FlowRow{}, false, err
		}
		u.skip(ctx, process, req.StepIndex, "acquire", err)
		return result.FlowRow{}, false, nil
	}

	scored, err := u.deps.Scorer.Score(ctx, pair.Mock, pair.Real)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result.FlowRow{}, false, ctxErr
		}
		u.skip(ctx, process, req.StepIndex, "score", err)
		return result.FlowRow{}, false, nil
	}

	if !u.opts.SkipVisualize && u.deps.Artifacts != nil {
		if err := u.deps.Artifacts.WriteVisualization(ctx, scope, req.StepIndex, scored.Visualization); err != nil {
			u.warn(ctx, "write visualization", "process", process, "step", req.StepIndex, "error", err)
		}
	}

	outcome := recovery.Outcome{State: recovery.StateNormal}
	if req.Inconsistent {
		episode := recovery.Episode{
			Scope:     scope,
			StepIndex: req.StepIndex,
			Step:      step,
			Capture: func(ctx context.Context) (*screen.Screen, error) {
				return u.deps.Source.Recapture(ctx, req)
			},
			Proposer: u.proposer(responses),
			Revert:   u.deps.Source.Live(),
		}
		outcome, err = u.deps.Recovery.Recover(ctx, episode)
		if err != nil {
			return result.FlowRow{}, false, err
		}
	}

	return result.FlowRow{
		Package:     rec.PackageName,
		Process:     process,
		Step:        req.StepIndex,
		Scores:      scored.Scores,
		ActionTime:  pair.ActionTime,
		Timings:     scored.Timings,
		GroundTruth: !req.Inconsistent,
		Recovery:    outcome.Result(),
		Retries:     outcome.Retries(),
	}, true, nil
}

func (u *EvaluateUseCase) proposer(responses []string) recovery.Proposer {
	if u.deps.Agent != nil {
		return &recovery.AgentProposer{Agent: u.deps.Agent}
	}
	return recovery.NewReplayProposer(responses)
}

func (u *EvaluateUseCase) skip(ctx context.Context, process string, step int, stage string, err error) {
	u.warn(ctx, "step skipped", "process", process, "step", step, "stage", stage, "error", err)
	u.publish(ctx, ports.EventStepSkipped, map[string]interface{}{
		"process": process,
		"step":    step,
		"stage":   stage,
		"error":   err.Error(),
	})
}

func (u *EvaluateUseCase) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	publishEvent(ctx, u.deps.Events, u.deps.Logger, eventType, payload)
}

func (u *EvaluateUseCase) debug(ctx context.Context, msg string, fields ...interface{}) {
	if u.deps.Logger != nil {
		u.deps.Logger.Debug(ctx, msg, fields...)
	}
}

func (u *EvaluateUseCase) info(ctx context.Context, msg string, fields ...interface{}) {
	if u.deps.Logger != nil {
		u.deps.Logger.Info(ctx, msg, fields...)
	}
}

func (u *EvaluateUseCase) warn(ctx context.Context, msg string, fields ...interface{}) {
	if u.deps.Logger != nil {
		u.deps.Logger.Warn(ctx, msg, fields...)
	}
}

func (u *EvaluateUseCase) logError(ctx context.Context, msg string, fields ...interface{}) {
	if u.deps.Logger != nil {
		u.deps.Logger.Error(ctx, msg, fields...)
	}
}
