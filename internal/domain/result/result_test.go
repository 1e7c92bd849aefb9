package result

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
)

func TestFlowRowValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		row  FlowRow
		want []string
	}{
		{
			name: "consistent step",
			row: FlowRow{
				Package:     "com.example",
				Process:     "process_1",
				Step:        0,
				Scores:      [3]float64{0.5, 0.75, 1},
				ActionTime:  1500 * time.Millisecond,
				Timings:     [3]time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond},
				GroundTruth: true,
			},
			want: []string{
				"com.example/process_1/0", "0.500000", "0.750000", "1.000000", "1.500000",
				"0.001000", "0.002000", "0.003000", "True", "n/a", "0",
			},
		},
		{
			name: "failed recovery",
			row: FlowRow{
				Package:  "com.example",
				Process:  "process_1",
				Step:     2,
				Recovery: OutcomeFailed,
				Retries:  3,
			},
			want: []string{
				"com.example/process_1/2", "0.000000", "0.000000", "0.000000", "0.000000",
				"0.000000", "0.000000", "0.000000", "False", "False", "3",
			},
		},
		{
			name: "completed recovery",
			row: FlowRow{
				Package:  "pkg",
				Process:  "p",
				Step:     1,
				Recovery: OutcomeOf(true),
				Retries:  1,
			},
			want: []string{
				"pkg/p/1", "0.000000", "0.000000", "0.000000", "0.000000",
				"0.000000", "0.000000", "0.000000", "False", "True", "1",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.row.Values())
			require.Len(t, tt.row.Values(), len(tt.row.Columns()))
			require.Equal(t, KindFlow, tt.row.Kind())
		})
	}
}

func TestFlowColumnsOrder(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"id,score1,score2,score3,action_time,time1,time2,time3,ground_truth,is_completed,retries",
		joinComma(FlowColumns))
}

func TestAblationRowPrefixesPipeline(t *testing.T) {
	t.Parallel()

	row := AblationRow{
		Pipeline: "no_ocr",
		ScreenRow: ScreenRow{
			Image:    "app/3",
			Mutation: "swap_widgets",
			Matcher:  "full",
			Checker:  "attribute",
			Counts:   inconsistency.Counts{ClsTP: 1, TP: 2, FP: 3, FN: 4},
		},
	}

	values := row.Values()
	require.Len(t, values, len(AblationColumns))
	require.Equal(t, "no_ocr", values[0])
	require.Equal(t, "app/3", values[1])
	require.Equal(t, "no_ocr/swap_widgets/full/attribute/app/3", row.Identity())
	require.NotEqual(t, row.ScreenRow.Identity(), row.Identity())
}

func TestPipelineSummaryObserve(t *testing.T) {
	t.Parallel()

	summary := PipelineSummary{Pipeline: "full"}
	summary.Observe(ScreenRow{Counts: inconsistency.Counts{ClsTP: 1, TP: 2, FP: 2, FN: 0}, MatchTime: 10 * time.Millisecond, CheckTime: 2 * time.Millisecond})
	summary.Observe(ScreenRow{Counts: inconsistency.Counts{ClsTP: 1, TP: 2, FP: 0, FN: 2}, MatchTime: 30 * time.Millisecond, CheckTime: 4 * time.Millisecond})

	require.Equal(t, 2, summary.Evaluations)
	require.Equal(t, 20*time.Millisecond, summary.AvgMatchTime())
	require.Equal(t, 3*time.Millisecond, summary.AvgCheckTime())
	require.Equal(t, []string{
		"full", "2", "4", "2", "2", "0.666667", "0.666667", "0.500000", "20.000", "3.000", "2",
	}, summary.Values())

	var empty PipelineSummary
	require.Zero(t, empty.AvgMatchTime())
}

func joinComma(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}

func TestTableOfKeysMatchIdentity(t *testing.T) {
	t.Parallel()

	rows := []Row{
		FlowRow{Package: "com.app", Process: "process_1", Step: 2},
		ScreenRow{Image: "a/1.jpg", Mutation: "delete_widgets", Matcher: "full", Checker: "baseline"},
		AblationRow{Pipeline: "no_ocr", ScreenRow: ScreenRow{Image: "a/1.jpg", Mutation: "swap_widgets", Matcher: "full", Checker: "baseline"}},
		PipelineSummary{Pipeline: "full"},
	}
	for _, row := range rows {
		table, err := TableOf(row.Kind())
		require.NoError(t, err)
		require.Equal(t, table.Columns, row.Columns())
		require.LessOrEqual(t, table.KeyWidth, len(row.Values()))
	}

	_, err := TableOf("bogus")
	require.Error(t, err)
}
