package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/confirm"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration problems to 2 and interrupted runs to 130.
func exitCode(err error) int {
	var validationErr *flowerrors.ValidationError
	var parseErr *flowerrors.ParseError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &validationErr), errors.As(err, &parseErr):
		return 2
	case errors.Is(err, context.Canceled), errors.Is(err, confirm.ErrAborted):
		return 130
	default:
		return 1
	}
}
