// Package screens evaluates matcher/checker combinations on labelled screen
// pairs: a recorded screen against a mutated copy of itself whose ground truth
// is known.
package screens

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/flow"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/mutate"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	"github.com/alexisbeaulieu97/flowcheck/internal/scoring"
)

// Evaluator runs a pipeline over a set of screen captures.
type Evaluator struct {
	Loader    ports.ScreenLoader
	Mutations []mutate.Mutation
	Ratio     float64
	Seed      uint64
	Logger    ports.Logger
	Events    ports.EventPublisher
}

// NewEvaluator returns an evaluator over every mutation operator.
func NewEvaluator(loader ports.ScreenLoader, ratio float64, seed uint64) (*Evaluator, error) {
	if loader == nil {
		return nil, errors.New("screen evaluation requires a screen loader")
	}
	if ratio <= 0 {
		ratio = mutate.DefaultRatio
	}
	return &Evaluator{Loader: loader, Mutations: mutate.All(), Ratio: ratio, Seed: seed}, nil
}

// Evaluate writes one row per mutation, image and combo to sink and returns
// the aggregate. Ablation pipelines write AblationRows, the static pipeline
// writes ScreenRows. Each call reseeds its generator so every pipeline sees
// the same mutations.
func (e *Evaluator) Evaluate(ctx context.Context, p Pipeline, images []string, sink ports.ResultSink, ablation bool) (result.PipelineSummary, error) {
	summary := result.PipelineSummary{Pipeline: p.Name}
	if sink == nil {
		return summary, errors.New("screen evaluation requires a sink")
	}
	mutations := e.Mutations
	if len(mutations) == 0 {
		mutations = mutate.All()
	}
	rng := flow.NewRunRand(e.Seed)

	e.info(ctx, "evaluating pipeline", "pipeline", p.Name, "images", len(images), "mutations", len(mutations))
	for _, m := range mutations {
		for _, path := range images {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			original, err := e.Loader.Load(ctx, path)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return summary, ctxErr
				}
				e.warn(ctx, "screen skipped", "image", path, "mutation", m.Name, "error", err)
				continue
			}
			if p.StripText {
				original = stripText(original)
			}
			mutated, truth := mutate.Mutate(original, m, e.Ratio, rng)

			var filter scoring.Filter
			if p.Postprocess {
				filter = m.Postprocess
			}

			for _, combo := range p.Combos {
				strategy := scoring.Strategy{
					Name:    combo.MatcherName + "/" + combo.CheckerName,
					Matcher: combo.Matcher,
					Checker: combo.Checker,
				}
				ev, err := scoring.EvaluatePair(ctx, strategy, original, mutated, truth, filter)
				if err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return summary, ctxErr
					}
					e.warn(ctx, "evaluation skipped", "image", path, "mutation", m.Name, "strategy", strategy.Name, "error", err)
					continue
				}

				row := result.ScreenRow{
					Image:     path,
					Mutation:  m.Name,
					Matcher:   combo.MatcherName,
					Checker:   combo.CheckerName,
					Counts:    ev.Counts,
					MatchTime: ev.MatchTime,
					CheckTime: ev.CheckTime,
				}
				var out result.Row = row
				if ablation {
					out = result.AblationRow{Pipeline: p.Name, ScreenRow: row}
				}
				if err := sink.Write(ctx, out); err != nil {
					return summary, fmt.Errorf("write row %s: %w", out.Identity(), err)
				}
				summary.Observe(row)

				e.publish(ctx, ports.EventScreenEvaluated, map[string]interface{}{
					"pipeline": p.Name,
					"image":    path,
					"mutation": m.Name,
					"matcher":  combo.MatcherName,
					"checker":  combo.CheckerName,
					"tp":       ev.Counts.TP,
					"fp":       ev.Counts.FP,
					"fn":       ev.Counts.FN,
				})
			}
		}
	}

	e.info(ctx, "pipeline complete", "pipeline", p.Name, "evaluations", summary.Evaluations,
		"precision", summary.Counts.Precision(), "recall", summary.Counts.Recall())
	return summary, nil
}

func (e *Evaluator) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	publishEvent(ctx, e.Events, e.Logger, eventType, payload)
}

func (e *Evaluator) info(ctx context.Context, msg string, fields ...interface{}) {
	if e.Logger != nil {
		e.Logger.Info(ctx, msg, fields...)
	}
}

func (e *Evaluator) warn(ctx context.Context, msg string, fields ...interface{}) {
	if e.Logger != nil {
		e.Logger.Warn(ctx, msg, fields...)
	}
}
