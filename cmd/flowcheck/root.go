package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/flowcheck/internal/config"
)

// lookupEnv is swapped by tests.
var lookupEnv config.LookupEnv = os.LookupEnv

type rootFlags struct {
	configPath string
	dataset    string
	outputDir  string
	database   string
	seed       uint64
	logLevel   string
	logHuman   bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "flowcheck",
		Short:         "flowcheck evaluates GUI flow inconsistency detection and recovery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML run configuration")
	pf.StringVar(&flags.dataset, "dataset", "", "Dataset root (defaults to $DATASET_PATH)")
	pf.StringVar(&flags.outputDir, "output-dir", "", "Directory for results and artifacts")
	pf.StringVar(&flags.database, "database", "", "SQLite results database, relative to the output directory")
	pf.Uint64Var(&flags.seed, "seed", 0, "Seed for inconsistency selection and mutations")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.BoolVar(&flags.logHuman, "log-human", false, "Human-readable console logs")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Shorthand for --log-level debug")

	cmd.AddCommand(newFlowCmd(flags))
	cmd.AddCommand(newScreensCmd(flags))
	cmd.AddCommand(newAblationCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// load reads the file and environment layers, then applies the flags the
// user actually set.
func (f *rootFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath, lookupEnv)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("dataset") {
		cfg.Dataset = f.dataset
	}
	if changed("output-dir") {
		cfg.Output.Dir = f.outputDir
	}
	if changed("database") {
		cfg.Output.Database = f.database
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-human") {
		cfg.Log.Human = f.logHuman
	}
	if f.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
