package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/flowcheck/internal/acquisition"
	flowapp "github.com/alexisbeaulieu97/flowcheck/internal/application/flow"
	"github.com/alexisbeaulieu97/flowcheck/internal/config"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/agent"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/capture"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/device"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/record"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/results"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	"github.com/alexisbeaulieu97/flowcheck/internal/recovery"
	"github.com/alexisbeaulieu97/flowcheck/internal/scoring"
	"github.com/alexisbeaulieu97/flowcheck/internal/tui"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

type flowFlags struct {
	mode               string
	processPattern     string
	replayRealSubdir   string
	resultsFile        string
	limit              int
	inconsistencyIndex int
	skipAgent          bool
	skipVisualize      bool
	openAIKey          string
	model              string
	agentBaseURL       string
	adb                string
	serial             string
	detectorURL        string
	ocrURL             string
	maxAttempts        int
	minIoU             float64
}

var flowCmdRunner = runFlow

func newFlowCmd(root *rootFlags) *cobra.Command {
	flags := &flowFlags{}

	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Evaluate recorded flows, scoring each transition and recovering the inconsistent one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			return flowCmdRunner(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.mode, "mode", "", "Run mode: interactive or replay")
	f.StringVar(&flags.processPattern, "process-pattern", "", "Glob selecting process directories under each package")
	f.StringVar(&flags.replayRealSubdir, "replay-real-subdir", "", "Subdirectory holding replayed real captures")
	f.StringVar(&flags.resultsFile, "results-file", "", "Results CSV, relative to the output directory")
	f.IntVar(&flags.limit, "limit", 0, "Evaluate at most this many processes (0 for all)")
	f.IntVar(&flags.inconsistencyIndex, "inconsistency-index", 0, "Force the inconsistent step of every process")
	f.BoolVar(&flags.skipAgent, "skip-agent", false, "Recover from recorded responses instead of the vision agent")
	f.BoolVar(&flags.skipVisualize, "skip-visualize", false, "Do not write scoring visualizations")
	f.StringVar(&flags.openAIKey, "openai-key", "", "Vision agent API key")
	f.StringVar(&flags.model, "model", "", "Vision agent model")
	f.StringVar(&flags.agentBaseURL, "agent-base-url", "", "OpenAI-compatible endpoint")
	f.StringVar(&flags.adb, "adb", "", "adb binary")
	f.StringVar(&flags.serial, "serial", "", "Target device serial")
	f.StringVar(&flags.detectorURL, "detector-url", "", "Widget detection service URL")
	f.StringVar(&flags.ocrURL, "ocr-url", "", "OCR service URL")
	f.IntVar(&flags.maxAttempts, "max-attempts", 0, "Recovery attempts per inconsistent step")
	f.Float64Var(&flags.minIoU, "min-iou", 0, "Minimum target IoU for an accepted recovery")

	return cmd
}

func (f *flowFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("mode") {
		cfg.Mode = f.mode
	}
	if changed("process-pattern") {
		cfg.ProcessPattern = f.processPattern
	}
	if changed("replay-real-subdir") {
		cfg.ReplayRealSubdir = f.replayRealSubdir
	}
	if changed("results-file") {
		cfg.Output.ResultsFile = f.resultsFile
	}
	if changed("limit") {
		cfg.Limit = f.limit
	}
	if changed("inconsistency-index") {
		index := f.inconsistencyIndex
		cfg.InconsistencyIndex = &index
	}
	if changed("skip-agent") {
		cfg.SkipAgent = f.skipAgent
	}
	if changed("skip-visualize") {
		cfg.Output.SkipVisualize = f.skipVisualize
	}
	if changed("openai-key") {
		cfg.Agent.APIKey = f.openAIKey
	}
	if changed("model") {
		cfg.Agent.Model = f.model
	}
	if changed("agent-base-url") {
		cfg.Agent.BaseURL = f.agentBaseURL
	}
	if changed("adb") {
		cfg.Device.ADB = f.adb
	}
	if changed("serial") {
		cfg.Device.Serial = f.serial
	}
	if changed("detector-url") {
		cfg.Services.DetectorURL = f.detectorURL
	}
	if changed("ocr-url") {
		cfg.Services.OCRURL = f.ocrURL
	}
	if changed("max-attempts") {
		cfg.Recovery.MaxAttempts = f.maxAttempts
	}
	if changed("min-iou") {
		cfg.Recovery.MinIoU = f.minIoU
	}
}

func runFlow(ctx context.Context, cfg *config.Config, out io.Writer) (err error) {
	if err := config.ValidateFlow(cfg); err != nil {
		return err
	}
	log, err := newLogger(cfg, "flow")
	if err != nil {
		return err
	}
	ctx = ports.WithCorrelationID(ctx, ports.GenerateCorrelationID())
	publisher := events.NewLoggingPublisher(log)

	dirs, err := record.Processes(cfg.Dataset, cfg.ProcessPattern, cfg.Limit)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return flowerrors.NewValidationError("process_pattern",
			fmt.Sprintf("no process directories match %q under %s", cfg.ProcessPattern, cfg.Dataset), nil)
	}

	loader := capture.NewFileLoader()
	confirmer := newConfirmer(cfg, log)

	var dev ports.Device
	var source acquisition.Source
	if cfg.Mode == config.ModeReplay {
		source = acquisition.NewReplay(loader, cfg.ReplayRealSubdir)
	} else {
		adb := device.NewADB(cfg.Device.ADB, cfg.Device.Serial, log)
		dev = adb
		source = &acquisition.Interactive{
			Device:    adb,
			Builder:   newScreenBuilder(cfg),
			Loader:    loader,
			Confirmer: confirmer,
			Logger:    log,
		}
	}

	var vision ports.Agent
	if cfg.NeedsAgent() {
		a, err := agent.New(agent.Settings{
			APIKey:    cfg.Agent.APIKey,
			BaseURL:   cfg.Agent.BaseURL,
			Model:     cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
		}, log)
		if err != nil {
			return err
		}
		vision = a
	}

	sinks, err := openSinkSet(ctx, cfg, "flow", log)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, sinks.Close()) }()

	sink, err := sinks.open(cfg.Output.ResultsFile, result.KindFlow)
	if err != nil {
		return err
	}
	artifacts := results.NewArtifacts(cfg.Output.Dir)

	uc, err := flowapp.NewEvaluateUseCase(flowapp.Dependencies{
		Loader: record.NewLoader(),
		Source: source,
		Scorer: scoring.NewDefault(),
		Recovery: &recovery.Engine{
			Device:      dev,
			Confirmer:   confirmer,
			Artifacts:   artifacts,
			Events:      publisher,
			Logger:      log,
			MaxAttempts: cfg.Recovery.MaxAttempts,
			MinIoU:      cfg.Recovery.MinIoU,
		},
		Agent:     vision,
		Sink:      sink,
		Artifacts: artifacts,
		Logger:    log,
		Events:    publisher,
	}, flowapp.Options{
		Seed:               cfg.Seed,
		InconsistencyIndex: cfg.InconsistencyIndex,
		SkipVisualize:      cfg.Output.SkipVisualize,
	})
	if err != nil {
		return err
	}

	summary, runErr := uc.Run(ctx, dirs)
	closeErr := sink.Close()
	fmt.Fprint(out, renderFlowSummary(summary, publisher, sinks.path(cfg.Output.ResultsFile), sinks.run.ID))
	return errors.Join(runErr, closeErr)
}

func renderFlowSummary(s flowapp.Summary, publisher *events.LoggingPublisher, resultsPath, runID string) string {
	failed := tui.StatusNeutral
	if s.Failed > 0 {
		failed = tui.StatusBad
	}
	exhausted := tui.StatusNeutral
	if s.Exhausted > 0 {
		exhausted = tui.StatusBad
	}

	output := []tui.SummaryLine{{Label: "results", Value: resultsPath}}
	if runID != "" {
		output = append(output, tui.SummaryLine{Label: "run", Value: runID})
	}

	return tui.RenderSummary("flowcheck • flow",
		tui.SummarySection{Title: "Processes", Lines: []tui.SummaryLine{
			{Label: "evaluated", Value: strconv.Itoa(s.Processes)},
			{Label: "failed", Value: strconv.Itoa(s.Failed), Status: failed},
		}},
		tui.SummarySection{Title: "Steps", Lines: []tui.SummaryLine{
			{Label: "rows", Value: strconv.Itoa(s.Rows), Status: tui.StatusGood},
			{Label: "skipped", Value: strconv.Itoa(s.Skipped)},
		}},
		tui.SummarySection{Title: "Recovery", Lines: []tui.SummaryLine{
			{Label: "accepted", Value: strconv.Itoa(s.Accepted), Status: tui.StatusGood},
			{Label: "exhausted", Value: strconv.Itoa(s.Exhausted), Status: exhausted},
			{Label: "attempts", Value: strconv.Itoa(publisher.Count(ports.EventRecoveryAttempt))},
		}},
		tui.SummarySection{Title: "Output", Lines: output},
	)
}
