package results

import (
	"context"
	"errors"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

// FanOut writes every row to each sink in order. The first failing sink
// stops the write.
type FanOut []ports.ResultSink

// Write implements ports.ResultSink.
func (f FanOut) Write(ctx context.Context, row result.Row) error {
	for _, sink := range f {
		if err := sink.Write(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (f FanOut) Close() error {
	var errs []error
	for _, sink := range f {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
