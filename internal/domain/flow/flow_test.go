package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

const sampleRecord = `{
  "package_name": "com.example.shop",
  "init_activity": ".MainActivity",
  "inconsistency_index": 2,
  "steps": [
    {"description": "open cart", "action": "click", "params": {"target": {"bounds": [12, 12, 48, 48]}}},
    {"description": "type coupon", "action": "input_text", "params": {"field": {"bounds": [0, 100, 200, 140]}, "text": "SAVE10"}},
    {"description": "scroll list", "action": "scroll", "params": {"dy": 300, "dx": 0}},
    {"description": "done", "action": "back"}
  ]
}`

func TestRecordDecode(t *testing.T) {
	t.Parallel()

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(sampleRecord), &rec))
	require.NoError(t, rec.Validate())

	require.Equal(t, "com.example.shop", rec.PackageName)
	require.Equal(t, ".MainActivity", rec.InitActivity)
	require.Len(t, rec.Steps, 4)
	require.Equal(t, 3, rec.Transitions())
	require.NotNil(t, rec.InconsistencyIndex)
	require.Equal(t, 2, *rec.InconsistencyIndex)

	require.Equal(t, []screen.Bounds{{XMin: 12, YMin: 12, XMax: 48, YMax: 48}}, rec.Steps[0].TargetBounds())

	text, ok := rec.Steps[1].Text()
	require.True(t, ok)
	require.Equal(t, "SAVE10", text)

	dy, ok := rec.Steps[2].Param("dy")
	require.True(t, ok)
	n, ok := dy.AsNumber()
	require.True(t, ok)
	require.Equal(t, 300.0, n)
	require.Empty(t, rec.Steps[2].TargetBounds())
}

func TestStepTextPrefersTextParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params string
		want   string
		wantOK bool
	}{
		{
			name:   "text param after labelled target",
			params: `{"field": {"bounds": [0, 0, 10, 10], "text": "Username"}, "text": "SAVE10"}`,
			want:   "SAVE10",
			wantOK: true,
		},
		{
			name:   "first textual value without text param",
			params: `{"field": {"bounds": [0, 0, 10, 10], "text": "Username"}, "value": "SAVE10"}`,
			want:   "Username",
			wantOK: true,
		},
		{
			name:   "no textual value",
			params: `{"dy": 300}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var step Step
			require.NoError(t, json.Unmarshal([]byte(`{"action": "input_text", "params": `+tt.params+`}`), &step))
			text, ok := step.Text()
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, text)
		})
	}
}

func TestParamsPreserveDeclarationOrder(t *testing.T) {
	t.Parallel()

	var step Step
	require.NoError(t, json.Unmarshal([]byte(`{
		"action": "swipe",
		"params": {
			"to": {"bounds": [100, 100, 120, 120]},
			"from": {"bounds": [0, 0, 20, 20]},
			"speed": "fast"
		}
	}`), &step))

	names := make([]string, 0, len(step.Params))
	for _, p := range step.Params {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"to", "from", "speed"}, names)
	require.Equal(t, []screen.Bounds{
		{XMin: 100, YMin: 100, XMax: 120, YMax: 120},
		{XMin: 0, YMin: 0, XMax: 20, YMax: 20},
	}, step.TargetBounds())

	encoded, err := json.Marshal(step.Params)
	require.NoError(t, err)
	require.JSONEq(t, `{"to":{"bounds":[100,100,120,120]},"from":{"bounds":[0,0,20,20]},"speed":"fast"}`, string(encoded))
}

func TestInconsistencyIndexMustBeIntegral(t *testing.T) {
	t.Parallel()

	cases := map[string]*int{
		`{"steps":[{"action":"click"}],"inconsistency_index":1}`:    intPtr(1),
		`{"steps":[{"action":"click"}],"inconsistency_index":1.0}`:  nil,
		`{"steps":[{"action":"click"}],"inconsistency_index":"1"}`:  nil,
		`{"steps":[{"action":"click"}],"inconsistency_index":null}`: nil,
		`{"steps":[{"action":"click"}]}`:                            nil,
	}

	for doc, want := range cases {
		var rec Record
		require.NoError(t, json.Unmarshal([]byte(doc), &rec), doc)
		require.Equal(t, want, rec.InconsistencyIndex, doc)
	}
}

func TestValidateRejectsEmptyRecord(t *testing.T) {
	t.Parallel()

	require.Error(t, (&Record{}).Validate())
	require.Error(t, (&Record{Steps: []Step{{Description: "no action"}}}).Validate())
}

func TestSelectInconsistencyIndexPriority(t *testing.T) {
	t.Parallel()

	rec := &Record{Steps: make([]Step, 5), InconsistencyIndex: intPtr(3)}

	require.Equal(t, 1, SelectInconsistencyIndex(rec, intPtr(1), NewRunRand(42)))
	require.Equal(t, 3, SelectInconsistencyIndex(rec, nil, NewRunRand(42)))

	single := &Record{Steps: make([]Step, 1)}
	require.Equal(t, NoInconsistency, SelectInconsistencyIndex(single, nil, NewRunRand(42)))
	require.Equal(t, 0, SelectInconsistencyIndex(single, intPtr(0), NewRunRand(42)))
}

func TestSelectInconsistencyIndexDeterministicForSeed(t *testing.T) {
	t.Parallel()

	rec := &Record{Steps: make([]Step, 6)}

	first := NewRunRand(42)
	second := NewRunRand(42)
	for i := 0; i < 50; i++ {
		a := SelectInconsistencyIndex(rec, nil, first)
		b := SelectInconsistencyIndex(rec, nil, second)
		require.Equal(t, a, b)
		require.GreaterOrEqual(t, a, 0)
		require.LessOrEqual(t, a, len(rec.Steps)-2)
	}
}

func TestSelectOverrideIgnoresSeed(t *testing.T) {
	t.Parallel()

	rec := &Record{Steps: make([]Step, 4)}
	for seed := uint64(0); seed < 20; seed++ {
		require.Equal(t, 2, SelectInconsistencyIndex(rec, intPtr(2), NewRunRand(seed)))
	}
}

func intPtr(v int) *int {
	return &v
}
