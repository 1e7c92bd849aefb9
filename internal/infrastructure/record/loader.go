// Package record reads process directories from a dataset: the recorded flow,
// the recorded agent responses and the screen captures.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/flow"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

// File names inside a process directory.
const (
	RecordFile = "record.json"
	RetryFile  = "vlm_retry.json"
)

const retryKeyPrefix = "step_"

// Loader reads records and retry responses from process directories.
type Loader struct{}

// NewLoader returns a Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadRecord decodes <dir>/record.json.
func (l *Loader) LoadRecord(ctx context.Context, dir string) (*flow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, RecordFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("record file not found: %s", path)
		}
		return nil, fmt.Errorf("read record %s: %w", path, err)
	}

	var rec flow.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, flowerrors.NewParseError(path, jsonLine(data, err), err)
	}
	return &rec, nil
}

// LoadRetryResponses decodes <dir>/vlm_retry.json. Keys have the form
// step_<index>. A missing file, a null entry or an empty list contributes
// nothing.
func (l *Loader) LoadRetryResponses(ctx context.Context, dir string) (map[int][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := map[int][]string{}
	path := filepath.Join(dir, RetryFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("read retry responses %s: %w", path, err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, flowerrors.NewParseError(path, jsonLine(data, err), err)
	}
	for key, responses := range raw {
		if len(responses) == 0 {
			continue
		}
		idx, ok := stepIndex(key)
		if !ok {
			continue
		}
		out[idx] = responses
	}
	return out, nil
}

func stepIndex(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, retryKeyPrefix)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// jsonLine maps a decoder offset to a 1-based line, or 0 when unknown.
func jsonLine(data []byte, err error) int {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return strings.Count(string(data[:offset]), "\n") + 1
}
