package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/rulesweep/internal/config"
	"github.com/rewired-gh/rulesweep/internal/logger"
)

// app holds the global flags and the configuration they override.
type app struct {
	configPath string
	dataPath   string
	outDir     string
	workers    int

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "rulesweep",
		Short: "Association rule threshold sweeps over retail transactions",
		Long: "Mines association rules from a cleaned transaction dataset across a grid of support, confidence " +
			"and lift thresholds, or along a single support axis with rule statistics and co-occurrence clustering.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to configuration file (defaults and RULESWEEP_* environment when empty)")
	pf.StringVar(&a.dataPath, "data", "", "cleaned transaction CSV (overrides data.path)")
	pf.StringVar(&a.outDir, "out", "", "output directory (overrides output.dir)")
	pf.IntVar(&a.workers, "workers", 0, "support values evaluated concurrently (overrides sweep.workers)")

	root.AddCommand(newGridCmd(a), newSensitivityCmd(a), newRunsCmd(a))
	return root
}

// setup loads configuration, applies explicitly set global flags and
// initializes logging. Sub-commands validate after applying their own flags.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return eris.Wrap(err, "load config")
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Data.Path = a.dataPath
	}
	if flags.Changed("out") {
		cfg.Output.Dir = a.outDir
	}
	if flags.Changed("workers") {
		cfg.Sweep.Workers = a.workers
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return eris.Wrap(err, "init logger")
	}
	if a.configPath != "" {
		logger.Info("Configuration loaded from %s", a.configPath)
	}
	return nil
}

func (a *app) validate() error {
	if err := a.cfg.Validate(); err != nil {
		return eris.Wrap(err, "invalid configuration")
	}
	return nil
}
