package flow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

// Param is a single named step parameter.
type Param struct {
	Name  string
	Value Value
}

// Value holds either a scalar or an object that may carry a target bound.
type Value struct {
	Scalar any
	Bounds *screen.Bounds
	Text   *string
	Fields map[string]any
}

// Params keeps step parameters in the order they were declared; the
// acceptance test pairs declared bounds with executed bounds by position.
type Params []Param

// UnmarshalJSON decodes a JSON object while preserving key order.
func (p *Params) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("params must be an object")
	}

	var out Params
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("params: unexpected key token %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("params.%s: %w", key, err)
		}
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("params.%s: %w", key, err)
		}
		out = append(out, Param{Name: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = out
	return nil
}

// MarshalJSON encodes params as an object in declaration order.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, param := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(param.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := param.Value.encode()
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var scalar any
		if err := dec.Decode(&scalar); err != nil {
			return Value{}, err
		}
		return Value{Scalar: scalar}, nil
	}

	var obj struct {
		Bounds *screen.Bounds `json:"bounds"`
		Text   *string        `json:"text"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return Value{}, err
	}

	fields := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return Value{}, err
	}
	delete(fields, "bounds")
	delete(fields, "text")

	return Value{Bounds: obj.Bounds, Text: obj.Text, Fields: fields}, nil
}

func (v Value) encode() ([]byte, error) {
	if v.Bounds == nil && v.Text == nil && v.Fields == nil {
		return json.Marshal(v.Scalar)
	}
	obj := make(map[string]any, len(v.Fields)+2)
	for k, val := range v.Fields {
		obj[k] = val
	}
	if v.Bounds != nil {
		obj["bounds"] = v.Bounds
	}
	if v.Text != nil {
		obj["text"] = *v.Text
	}
	return json.Marshal(obj)
}

// AsNumber returns the scalar as a float64 when it is numeric.
func (v Value) AsNumber() (float64, bool) {
	switch n := v.Scalar.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// AsString returns the text field or a string scalar.
func (v Value) AsString() (string, bool) {
	if v.Text != nil {
		return *v.Text, true
	}
	s, ok := v.Scalar.(string)
	return s, ok
}
