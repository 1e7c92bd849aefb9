package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/alexisbeaulieu97/flowcheck/internal/config"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/capture"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/confirm"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/provenance"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/results"
	"github.com/alexisbeaulieu97/flowcheck/internal/logger"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

// Terminal streams, swapped by tests.
var (
	stdin  io.Reader = os.Stdin
	stderr io.Writer = os.Stderr
)

// newLogger returns the run logger behind a gate the operator prompt can hold.
func newLogger(cfg *config.Config, component string) (*logger.Gate, error) {
	base, err := logger.New(logger.Options{
		Level:         cfg.Log.Level,
		HumanReadable: cfg.Log.Human,
		Writer:        stderr,
		Component:     component,
	})
	if err != nil {
		return nil, err
	}
	return logger.NewGate(base, 0), nil
}

// newConfirmer picks the operator prompt. Replay runs never wait; a terminal
// gets the full prompt and anything else a line prompt.
func newConfirmer(cfg *config.Config, log *logger.Gate) ports.Confirmer {
	if cfg.Mode == config.ModeReplay {
		return confirm.Auto{Logger: log}
	}
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p := confirm.NewPrompt(stdin, stderr)
		p.Logs = log
		return p
	}
	return confirm.NewLine(stdin, stderr)
}

func newScreenBuilder(cfg *config.Config) *capture.Builder {
	var detector ports.Detector
	if cfg.Services.DetectorURL != "" {
		detector = capture.NewDetector(cfg.Services.DetectorURL, cfg.Services.Timeout)
	}
	var ocr ports.OCR
	if cfg.Services.OCRURL != "" {
		ocr = capture.NewOCR(cfg.Services.OCRURL, cfg.Services.Timeout)
	}
	return capture.NewBuilder(detector, ocr)
}

// sinkSet opens the CSV tables of a run. When a database is configured every
// table also writes through to it.
type sinkSet struct {
	dir   string
	store *results.Store
	run   results.Run
}

func openSinkSet(ctx context.Context, cfg *config.Config, command string, log ports.Logger) (*sinkSet, error) {
	s := &sinkSet{dir: cfg.Output.Dir}
	if cfg.Output.Database == "" {
		return s, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}

	rev, err := provenance.Lookup(cfg.Dataset)
	if err != nil {
		log.Warn(ctx, "dataset revision unavailable", "dataset", cfg.Dataset, "error", err)
	}

	store, err := results.OpenStore(s.path(cfg.Output.Database))
	if err != nil {
		return nil, err
	}
	run, err := store.Begin(ctx, results.Run{
		ID:              ports.GetCorrelationID(ctx),
		Command:         command,
		Mode:            cfg.Mode,
		Dataset:         cfg.Dataset,
		DatasetRevision: rev.String(),
		Seed:            cfg.Seed,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	log.Info(ctx, "recording run", "run_id", run.ID, "dataset_revision", run.DatasetRevision)
	s.store = store
	s.run = run
	return s, nil
}

func (s *sinkSet) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

func (s *sinkSet) open(name string, kind result.Kind) (ports.ResultSink, error) {
	table, err := results.OpenCSV(s.path(name), kind)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return table, nil
	}
	return results.FanOut{table, keepOpen{s.store}}, nil
}

func (s *sinkSet) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// keepOpen shares the store between tables; the set closes it once.
type keepOpen struct {
	ports.ResultSink
}

func (keepOpen) Close() error { return nil }
