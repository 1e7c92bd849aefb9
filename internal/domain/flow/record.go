// Package flow models recorded interaction flows: an ordered list of steps
// whose transitions are evaluated one at a time.
package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

// Record is a single recorded process of an app.
type Record struct {
	PackageName  string `json:"package_name"`
	InitActivity string `json:"init_activity"`
	Steps        []Step `json:"steps"`

	// InconsistencyIndex is set only when the source document carried an
	// integral inconsistency_index value.
	InconsistencyIndex *int `json:"-"`
}

// UnmarshalJSON decodes a record and picks up optional metadata.
func (r *Record) UnmarshalJSON(data []byte) error {
	type rawRecord struct {
		PackageName        string          `json:"package_name"`
		InitActivity       string          `json:"init_activity"`
		Steps              []Step          `json:"steps"`
		InconsistencyIndex json.RawMessage `json:"inconsistency_index"`
	}

	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.PackageName = raw.PackageName
	r.InitActivity = raw.InitActivity
	r.Steps = raw.Steps
	r.InconsistencyIndex = integralIndex(raw.InconsistencyIndex)
	return nil
}

// integralIndex accepts only bare JSON integers such as 2; 2.0, "2" and null are ignored.
func integralIndex(raw json.RawMessage) *int {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	n, err := strconv.Atoi(string(trimmed))
	if err != nil {
		return nil
	}
	return &n
}

// Validate checks structural invariants.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("record must contain at least one step")
	}
	for i, step := range r.Steps {
		if step.Action == "" {
			return fmt.Errorf("steps[%d]: action is required", i)
		}
	}
	return nil
}

// Transitions returns the number of evaluated transitions: every step but the last.
func (r *Record) Transitions() int {
	if r == nil || len(r.Steps) == 0 {
		return 0
	}
	return len(r.Steps) - 1
}

// Step is a single interaction in a record.
type Step struct {
	Description string `json:"description"`
	Action      string `json:"action"`
	Params      Params `json:"params,omitempty"`
	Screenshot  string `json:"screenshot,omitempty"`
}

// TargetBounds returns every bound declared by the parameters, in declaration order.
func (s Step) TargetBounds() []screen.Bounds {
	var out []screen.Bounds
	for _, p := range s.Params {
		if p.Value.Bounds != nil {
			out = append(out, *p.Value.Bounds)
		}
	}
	return out
}

// Text returns the text to type for the step: the "text" parameter when
// present, otherwise the first textual parameter value.
func (s Step) Text() (string, bool) {
	if v, ok := s.Param("text"); ok {
		if str, ok := v.AsString(); ok {
			return str, true
		}
	}
	for _, p := range s.Params {
		if str, ok := p.Value.AsString(); ok {
			return str, true
		}
	}
	return "", false
}

// Param returns the named parameter value.
func (s Step) Param(name string) (Value, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return Value{}, false
}
