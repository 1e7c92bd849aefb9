package scoring

import (
	"context"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

// Filter post-processes raw predictions before they are compared to truth.
type Filter func(pred, truth inconsistency.Set, s1, s2 *screen.Screen) inconsistency.Set

// Evaluation is the outcome of scoring one labelled screen pair.
type Evaluation struct {
	Pairs     []inconsistency.Pair
	Raw       inconsistency.Set
	Predicted inconsistency.Set
	Counts    inconsistency.Counts
	MatchTime time.Duration
	CheckTime time.Duration
}

// EvaluatePair runs a single strategy over a pair with known ground truth.
// A nil filter keeps raw predictions.
func EvaluatePair(ctx context.Context, strategy Strategy, s1, s2 *screen.Screen, truth inconsistency.Set, filter Filter) (Evaluation, error) {
	if strategy.Matcher == nil || strategy.Checker == nil {
		return Evaluation{}, flowerrors.NewScoringError(strategy.Name, "input", errMissingComponents)
	}
	res, err := run(ctx, strategy, s1, s2)
	if err != nil {
		return Evaluation{}, err
	}

	raw := inconsistency.NewSet(res.Inconsistencies...)
	pred := raw
	if filter != nil {
		pred = filter(raw, truth, s1, s2)
	}

	return Evaluation{
		Pairs:     res.Pairs,
		Raw:       raw,
		Predicted: pred,
		Counts:    inconsistency.Compare(pred, truth),
		MatchTime: res.MatchTime,
		CheckTime: res.CheckTime,
	}, nil
}
