// Package scoring runs a mock/real screen pair through the configured
// matcher/checker strategies and collects scores, timings and a structured
// visualization of the result.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/baseline"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	"github.com/alexisbeaulieu97/flowcheck/pkg/diff"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

var errMissingComponents = errors.New("matcher and checker are required")

// StrategyCount is the fixed number of strategies an Adapter holds.
const StrategyCount = 3

// Strategy is a named matcher/checker combination.
type Strategy struct {
	Name    string
	Matcher ports.Matcher
	Checker ports.Checker
}

// StrategyResult is what one strategy produced for a screen pair.
type StrategyResult struct {
	Name            string                        `json:"name"`
	Score           float64                       `json:"score"`
	Pairs           []inconsistency.Pair          `json:"pairs"`
	Inconsistencies []inconsistency.Inconsistency `json:"inconsistencies"`
	MatchTime       time.Duration                 `json:"match_time_ns"`
	CheckTime       time.Duration                 `json:"check_time_ns"`
}

// Visualization is the structured artifact written per scored step.
type Visualization struct {
	MockFingerprint string           `json:"mock_fingerprint"`
	RealFingerprint string           `json:"real_fingerprint"`
	MockWidgets     []screen.Widget  `json:"mock_widgets"`
	RealWidgets     []screen.Widget  `json:"real_widgets"`
	LayoutDiff      string           `json:"layout_diff,omitempty"`
	Strategies      []StrategyResult `json:"strategies"`
}

// Outcome is the result of scoring one pair.
type Outcome struct {
	Visualization Visualization
	Scores        [StrategyCount]float64
	Timings       [StrategyCount]time.Duration
}

// Adapter scores screen pairs through exactly three strategies.
type Adapter struct {
	strategies [StrategyCount]Strategy
}

// NewAdapter validates and wraps the given strategies.
func NewAdapter(strategies [StrategyCount]Strategy) (*Adapter, error) {
	for i, s := range strategies {
		if s.Matcher == nil || s.Checker == nil {
			return nil, fmt.Errorf("strategy %d (%s): %w", i, s.Name, errMissingComponents)
		}
	}
	return &Adapter{strategies: strategies}, nil
}

// DefaultStrategies returns the baseline layout, full and text strategies.
func DefaultStrategies() [StrategyCount]Strategy {
	checker := baseline.NewChecker()
	return [StrategyCount]Strategy{
		{Name: "layout", Matcher: baseline.NewMatcher(0), Checker: checker},
		{Name: "full", Matcher: baseline.NewMatcher(0.5), Checker: checker},
		{Name: "text", Matcher: baseline.NewMatcher(1), Checker: checker},
	}
}

// NewDefault returns an Adapter over DefaultStrategies.
func NewDefault() *Adapter {
	return &Adapter{strategies: DefaultStrategies()}
}

// Strategies returns the configured strategies in score order.
func (a *Adapter) Strategies() [StrategyCount]Strategy {
	return a.strategies
}

// Score runs every strategy over the pair. Failures are not retried.
func (a *Adapter) Score(ctx context.Context, mock, actual *screen.Screen) (Outcome, error) {
	var out Outcome
	if !mock.Ready() || !actual.Ready() {
		return out, flowerrors.NewScoringError("", "input", fmt.Errorf("screens must be fully initialized"))
	}

	out.Visualization = Visualization{
		MockFingerprint: mock.Fingerprint(),
		RealFingerprint: actual.Fingerprint(),
		MockWidgets:     mock.Widgets,
		RealWidgets:     actual.Widgets,
		LayoutDiff:      diff.Screens(mock, actual, "mock", "real"),
		Strategies:      make([]StrategyResult, 0, StrategyCount),
	}

	for k, strategy := range a.strategies {
		res, err := run(ctx, strategy, mock, actual)
		if err != nil {
			return Outcome{}, err
		}
		out.Scores[k] = res.Score
		out.Timings[k] = res.MatchTime + res.CheckTime
		out.Visualization.Strategies = append(out.Visualization.Strategies, res)
	}
	return out, nil
}

func run(ctx context.Context, strategy Strategy, a, b *screen.Screen) (StrategyResult, error) {
	if err := ctx.Err(); err != nil {
		return StrategyResult{}, err
	}
	pairs, score, matchTime, err := strategy.Matcher.Match(ctx, a, b)
	if err != nil {
		return StrategyResult{}, flowerrors.NewScoringError(strategy.Name, "match", err)
	}
	found, checkTime, err := strategy.Checker.Check(ctx, a, b, pairs)
	if err != nil {
		return StrategyResult{}, flowerrors.NewScoringError(strategy.Name, "check", err)
	}
	return StrategyResult{
		Name:            strategy.Name,
		Score:           score,
		Pairs:           pairs,
		Inconsistencies: found.Sorted(),
		MatchTime:       matchTime,
		CheckTime:       checkTime,
	}, nil
}
