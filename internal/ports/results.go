package ports

import (
	"context"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
)

// ResultSink persists rows. Writing a row whose identity already exists
// replaces the previous row, so reruns never duplicate.
type ResultSink interface {
	Write(ctx context.Context, row result.Row) error
	Close() error
}

// ArtifactWriter stores per-step diagnostic artifacts. scope groups the
// artifacts of one process, for example "com.app-process_3".
type ArtifactWriter interface {
	WriteVisualization(ctx context.Context, scope string, step int, payload any) error
	AppendTranscript(ctx context.Context, scope string, step int, text string) error
	WriteAttemptImage(ctx context.Context, scope string, step int, image []byte) error
}
