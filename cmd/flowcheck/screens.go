package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/flowcheck/internal/application/screens"
	"github.com/alexisbeaulieu97/flowcheck/internal/config"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/capture"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/flowcheck/internal/infrastructure/record"
	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
	"github.com/alexisbeaulieu97/flowcheck/internal/tui"
	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

// SummaryFile holds one summary row per ablation pipeline.
const SummaryFile = "summary.csv"

type screenFlags struct {
	pattern     string
	ratio       float64
	resultsFile string
	pipelines   []string
}

func (f *screenFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pattern, "pattern", "", "Glob selecting screen captures under the dataset")
	cmd.Flags().Float64Var(&f.ratio, "ratio", 0, "Share of widgets each mutation touches")
}

func (f *screenFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("pattern") {
		cfg.Screens.Pattern = f.pattern
	}
	if changed("ratio") {
		cfg.Screens.Ratio = f.ratio
	}
	if changed("results-file") {
		cfg.Output.ResultsFile = f.resultsFile
	}
	if changed("pipeline") {
		cfg.Screens.Pipelines = f.pipelines
	}
}

var (
	screensCmdRunner  = runScreens
	ablationCmdRunner = runAblation
)

func newScreensCmd(root *rootFlags) *cobra.Command {
	flags := &screenFlags{}

	cmd := &cobra.Command{
		Use:   "screens",
		Short: "Evaluate matcher and checker combinations on mutated screen pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			return screensCmdRunner(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.resultsFile, "results-file", "", "Results CSV, relative to the output directory")

	return cmd
}

func newAblationCmd(root *rootFlags) *cobra.Command {
	flags := &screenFlags{}

	cmd := &cobra.Command{
		Use:   "ablation",
		Short: "Compare pipeline presets on mutated screen pairs",
		Long: "Compare pipeline presets on mutated screen pairs. Each pipeline writes <name>.csv and\n" +
			"the totals go to " + SummaryFile + ". Presets: " + fmt.Sprint(screens.PresetNames()) + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			return ablationCmdRunner(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&flags.pipelines, "pipeline", nil, "Pipeline presets to run (repeatable)")

	return cmd
}

type screenRun struct {
	evaluator *screens.Evaluator
	images    []string
	sinks     *sinkSet
}

func prepareScreens(ctx context.Context, cfg *config.Config, command string) (context.Context, *screenRun, error) {
	if err := config.ValidateScreens(cfg); err != nil {
		return ctx, nil, err
	}
	log, err := newLogger(cfg, command)
	if err != nil {
		return ctx, nil, err
	}
	ctx = ports.WithCorrelationID(ctx, ports.GenerateCorrelationID())
	publisher := events.NewLoggingPublisher(log)

	images, err := record.Screens(cfg.Dataset, cfg.Screens.Pattern)
	if err != nil {
		return ctx, nil, err
	}
	if len(images) == 0 {
		return ctx, nil, flowerrors.NewValidationError("screens.pattern",
			fmt.Sprintf("no numbered captures match %q under %s", cfg.Screens.Pattern, cfg.Dataset), nil)
	}

	evaluator, err := screens.NewEvaluator(capture.NewFileLoader(), cfg.Screens.Ratio, cfg.Seed)
	if err != nil {
		return ctx, nil, err
	}
	evaluator.Logger = log
	evaluator.Events = publisher

	sinks, err := openSinkSet(ctx, cfg, command, log)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, &screenRun{evaluator: evaluator, images: images, sinks: sinks}, nil
}

func runScreens(ctx context.Context, cfg *config.Config, out io.Writer) (err error) {
	ctx, run, err := prepareScreens(ctx, cfg, "screens")
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, run.sinks.Close()) }()

	sink, err := run.sinks.open(cfg.Output.ResultsFile, result.KindScreen)
	if err != nil {
		return err
	}
	summary, runErr := run.evaluator.Evaluate(ctx, screens.StaticPipeline(), run.images, sink, false)
	closeErr := sink.Close()

	fmt.Fprint(out, tui.RenderSummary("flowcheck • screens",
		tui.SummarySection{Title: "Screens", Lines: []tui.SummaryLine{
			{Label: "images", Value: strconv.Itoa(len(run.images))},
			{Label: "evaluations", Value: strconv.Itoa(summary.Evaluations), Status: tui.StatusGood},
		}},
		countsSection(summary),
		tui.SummarySection{Title: "Output", Lines: []tui.SummaryLine{
			{Label: "results", Value: run.sinks.path(cfg.Output.ResultsFile)},
		}},
	))
	return errors.Join(runErr, closeErr)
}

func runAblation(ctx context.Context, cfg *config.Config, out io.Writer) (err error) {
	ctx, run, err := prepareScreens(ctx, cfg, "ablation")
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, run.sinks.Close()) }()

	pipelines, err := screens.Presets(cfg.Screens.Pipelines)
	if err != nil {
		return err
	}

	summarySink, err := run.sinks.open(SummaryFile, result.KindSummary)
	if err != nil {
		return err
	}
	runner := &screens.AblationRunner{
		Evaluator: run.evaluator,
		OpenSink: func(pipeline string) (ports.ResultSink, error) {
			return run.sinks.open(pipeline+".csv", result.KindAblation)
		},
		Summary: summarySink,
	}

	summaries, runErr := runner.Run(ctx, pipelines, run.images)
	closeErr := summarySink.Close()

	sections := make([]tui.SummarySection, 0, len(summaries)+1)
	for _, s := range summaries {
		section := countsSection(s)
		section.Title = s.Pipeline
		section.Lines = append(section.Lines,
			tui.SummaryLine{Label: "avg match", Value: s.AvgMatchTime().Round(time.Microsecond).String()},
			tui.SummaryLine{Label: "avg check", Value: s.AvgCheckTime().Round(time.Microsecond).String()},
		)
		sections = append(sections, section)
	}
	sections = append(sections, tui.SummarySection{Title: "Output", Lines: []tui.SummaryLine{
		{Label: "summary", Value: run.sinks.path(SummaryFile)},
	}})
	fmt.Fprint(out, tui.RenderSummary("flowcheck • ablation", sections...))
	return errors.Join(runErr, closeErr)
}

func countsSection(s result.PipelineSummary) tui.SummarySection {
	fp := tui.StatusNeutral
	if s.Counts.FP > 0 {
		fp = tui.StatusBad
	}
	return tui.SummarySection{Title: "Detection", Lines: []tui.SummaryLine{
		{Label: "tp", Value: strconv.Itoa(s.Counts.TP), Status: tui.StatusGood},
		{Label: "fp", Value: strconv.Itoa(s.Counts.FP), Status: fp},
		{Label: "fn", Value: strconv.Itoa(s.Counts.FN)},
		{Label: "precision", Value: strconv.FormatFloat(s.Counts.Precision(), 'f', 3, 64)},
		{Label: "recall", Value: strconv.FormatFloat(s.Counts.Recall(), 'f', 3, 64)},
	}}
}
