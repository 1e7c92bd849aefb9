// Package result defines the rows produced by evaluation runs. Every row has
// a stable identity used by sinks to upsert, and a fixed column order that
// downstream report tooling relies on.
package result

import (
	"fmt"
	"strconv"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
)

// Kind distinguishes row families sharing a sink.
type Kind string

const (
	KindFlow     Kind = "flow"
	KindScreen   Kind = "screen"
	KindAblation Kind = "ablation"
	KindSummary  Kind = "summary"
)

// Row is a single persisted result.
type Row interface {
	Kind() Kind
	Identity() string
	Columns() []string
	Values() []string
}

// Outcome is the recovery result recorded for a step.
type Outcome string

const (
	OutcomeNotApplicable Outcome = "n/a"
	OutcomeCompleted     Outcome = "true"
	OutcomeFailed        Outcome = "false"
)

// OutcomeOf maps a final verdict to an Outcome.
func OutcomeOf(completed bool) Outcome {
	if completed {
		return OutcomeCompleted
	}
	return OutcomeFailed
}

// FlowColumns is the flow table header.
var FlowColumns = []string{
	"id", "score1", "score2", "score3", "action_time",
	"time1", "time2", "time3", "ground_truth", "is_completed", "retries",
}

// FlowRow is the evaluation result of one step of a flow.
type FlowRow struct {
	Package     string
	Process     string
	Step        int
	Scores      [3]float64
	ActionTime  time.Duration
	Timings     [3]time.Duration
	GroundTruth bool
	Recovery    Outcome
	Retries     int
}

func (r FlowRow) Kind() Kind { return KindFlow }

// Identity is package/process/step.
func (r FlowRow) Identity() string {
	return fmt.Sprintf("%s/%s/%d", r.Package, r.Process, r.Step)
}

func (r FlowRow) Columns() []string { return FlowColumns }

func (r FlowRow) Values() []string {
	recovery := r.Recovery
	if recovery == "" {
		recovery = OutcomeNotApplicable
	}
	return []string{
		r.Identity(),
		formatFloat(r.Scores[0]),
		formatFloat(r.Scores[1]),
		formatFloat(r.Scores[2]),
		formatSeconds(r.ActionTime),
		formatSeconds(r.Timings[0]),
		formatSeconds(r.Timings[1]),
		formatSeconds(r.Timings[2]),
		formatBool(r.GroundTruth),
		formatOutcome(recovery),
		strconv.Itoa(r.Retries),
	}
}

// ScreenColumns is the screen-pair table header.
var ScreenColumns = []string{
	"id", "mutation", "matcher", "checker", "cls_tp", "tp", "fp", "fn", "match_time", "check_time",
}

// ScreenRow is one matcher/checker evaluation of a mutated screen.
type ScreenRow struct {
	Image     string
	Mutation  string
	Matcher   string
	Checker   string
	Counts    inconsistency.Counts
	MatchTime time.Duration
	CheckTime time.Duration
}

func (r ScreenRow) Kind() Kind { return KindScreen }

func (r ScreenRow) Identity() string {
	return fmt.Sprintf("%s/%s/%s/%s", r.Mutation, r.Matcher, r.Checker, r.Image)
}

func (r ScreenRow) Columns() []string { return ScreenColumns }

func (r ScreenRow) Values() []string {
	return []string{
		r.Image,
		r.Mutation,
		r.Matcher,
		r.Checker,
		strconv.Itoa(r.Counts.ClsTP),
		strconv.Itoa(r.Counts.TP),
		strconv.Itoa(r.Counts.FP),
		strconv.Itoa(r.Counts.FN),
		formatSeconds(r.MatchTime),
		formatSeconds(r.CheckTime),
	}
}

// AblationColumns is the per-pipeline ablation table header.
var AblationColumns = []string{
	"pipeline", "image", "mutation", "matcher", "checker", "cls_tp", "tp", "fp", "fn", "match_time", "check_time",
}

// AblationRow is a ScreenRow tagged with the pipeline that produced it.
type AblationRow struct {
	Pipeline string
	ScreenRow
}

func (r AblationRow) Kind() Kind { return KindAblation }

func (r AblationRow) Identity() string {
	return r.Pipeline + "/" + r.ScreenRow.Identity()
}

func (r AblationRow) Columns() []string { return AblationColumns }

func (r AblationRow) Values() []string {
	return append([]string{r.Pipeline}, r.ScreenRow.Values()...)
}

// SummaryColumns is the ablation summary header.
var SummaryColumns = []string{
	"pipeline", "cls_tp", "tp", "fp", "fn", "precision", "recall", "cls_precision",
	"avg_match_time_ms", "avg_check_time_ms", "evaluations",
}

// PipelineSummary aggregates every evaluation of one pipeline.
type PipelineSummary struct {
	Pipeline    string
	Counts      inconsistency.Counts
	MatchTime   time.Duration
	CheckTime   time.Duration
	Evaluations int
}

// Observe folds a screen row into the summary.
func (s *PipelineSummary) Observe(row ScreenRow) {
	s.Counts = s.Counts.Add(row.Counts)
	s.MatchTime += row.MatchTime
	s.CheckTime += row.CheckTime
	s.Evaluations++
}

// AvgMatchTime is the mean match time per evaluation.
func (s PipelineSummary) AvgMatchTime() time.Duration {
	if s.Evaluations == 0 {
		return 0
	}
	return s.MatchTime / time.Duration(s.Evaluations)
}

// AvgCheckTime is the mean check time per evaluation.
func (s PipelineSummary) AvgCheckTime() time.Duration {
	if s.Evaluations == 0 {
		return 0
	}
	return s.CheckTime / time.Duration(s.Evaluations)
}

func (s PipelineSummary) Kind() Kind { return KindSummary }

func (s PipelineSummary) Identity() string { return s.Pipeline }

func (s PipelineSummary) Columns() []string { return SummaryColumns }

func (s PipelineSummary) Values() []string {
	return []string{
		s.Pipeline,
		strconv.Itoa(s.Counts.ClsTP),
		strconv.Itoa(s.Counts.TP),
		strconv.Itoa(s.Counts.FP),
		strconv.Itoa(s.Counts.FN),
		formatFloat(s.Counts.Precision()),
		formatFloat(s.Counts.Recall()),
		formatFloat(s.Counts.ClassificationPrecision()),
		formatMillis(s.AvgMatchTime()),
		formatMillis(s.AvgCheckTime()),
		strconv.Itoa(s.Evaluations),
	}
}

// Table is the file layout of one row kind.
type Table struct {
	Columns []string
	// KeyWidth is the number of leading columns that identify a row.
	KeyWidth int
}

// TableOf returns the file layout of kind.
func TableOf(kind Kind) (Table, error) {
	switch kind {
	case KindFlow:
		return Table{Columns: FlowColumns, KeyWidth: 1}, nil
	case KindScreen:
		return Table{Columns: ScreenColumns, KeyWidth: 4}, nil
	case KindAblation:
		return Table{Columns: AblationColumns, KeyWidth: 5}, nil
	case KindSummary:
		return Table{Columns: SummaryColumns, KeyWidth: 1}, nil
	default:
		return Table{}, fmt.Errorf("unknown row kind %q", kind)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatSeconds(d time.Duration) string {
	return formatFloat(d.Seconds())
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}

// Report consumers parse booleans the way they were first written: True/False.
func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func formatOutcome(o Outcome) string {
	switch o {
	case OutcomeCompleted:
		return "True"
	case OutcomeFailed:
		return "False"
	default:
		return string(OutcomeNotApplicable)
	}
}
