package screens

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

// SinkFactory opens the result sink of one pipeline.
type SinkFactory func(pipeline string) (ports.ResultSink, error)

// AblationRunner evaluates several pipelines over the same screens and
// summarizes each one.
type AblationRunner struct {
	Evaluator *Evaluator
	OpenSink  SinkFactory
	Summary   ports.ResultSink
}

// Run evaluates pipelines in order. Every pipeline sink is closed before the
// next pipeline starts. Summaries are written after all pipelines finish.
func (r *AblationRunner) Run(ctx context.Context, pipelines []Pipeline, images []string) ([]result.PipelineSummary, error) {
	if r.Evaluator == nil || r.OpenSink == nil {
		return nil, errors.New("ablation requires an evaluator and a sink factory")
	}

	summaries := make([]result.PipelineSummary, 0, len(pipelines))
	for _, p := range pipelines {
		summary, err := r.runPipeline(ctx, p, images)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}

	if r.Summary != nil {
		for _, s := range summaries {
			if err := r.Summary.Write(ctx, s); err != nil {
				return summaries, fmt.Errorf("write summary %s: %w", s.Pipeline, err)
			}
		}
	}
	return summaries, nil
}

func (r *AblationRunner) runPipeline(ctx context.Context, p Pipeline, images []string) (summary result.PipelineSummary, err error) {
	sink, err := r.OpenSink(p.Name)
	if err != nil {
		return summary, fmt.Errorf("open sink for %s: %w", p.Name, err)
	}
	defer func() {
		if closeErr := sink.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close sink for %s: %w", p.Name, closeErr)
		}
	}()
	return r.Evaluator.Evaluate(ctx, p, images, sink, true)
}
