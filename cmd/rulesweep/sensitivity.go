package main

import (
	"github.com/spf13/cobra"

	"github.com/rewired-gh/rulesweep/internal/logger"
	"github.com/rewired-gh/rulesweep/internal/sweep"
)

func newSensitivityCmd(a *app) *cobra.Command {
	var (
		supports      []float64
		minConfidence float64
		minLift       float64
		topN          int
	)

	cmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "Sweep support at fixed confidence and lift with rule statistics and clustering",
		Long: "Mines rules at each support value, filters them at the fixed confidence and lift, and summarizes " +
			"the surviving rules with descriptive statistics and the connected components of their item co-occurrence graph.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			sc := &a.cfg.Sensitivity
			if flags.Changed("supports") {
				sc.Supports = supports
			}
			if flags.Changed("min-confidence") {
				sc.MinConfidence = minConfidence
			}
			if flags.Changed("min-lift") {
				sc.MinLift = minLift
			}
			if flags.Changed("top") {
				sc.TopN = topN
			}
			if err := a.validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := a.begin(ctx, modeSensitivity, map[string]interface{}{
				"supports":             sc.Supports,
				"min_confidence":       sc.MinConfidence,
				"min_lift":             sc.MinLift,
				"top_n":                sc.TopN,
				"metric":               a.cfg.Miner.Metric,
				"generation_threshold": a.cfg.Miner.GenerationThreshold,
			})
			if err != nil {
				return err
			}

			res, err := s.driver.RunSensitivity(ctx, sweep.SensitivityParams{
				Supports:      sc.Supports,
				MinConfidence: sc.MinConfidence,
				MinLift:       sc.MinLift,
				TopN:          sc.TopN,
			})
			if err != nil {
				s.fail(ctx, err)
				return err
			}
			points := sensitivityPoints(res, sc.MinConfidence, sc.MinLift)
			if err := s.finish(ctx, points, res.Degraded, res.Details, artifacts(res)); err != nil {
				return err
			}

			printTable(cmd.OutOrStdout(), res.Table.Header(), res.Table.Records())
			logger.Info("Sensitivity summary written to %s", res.Summary[0])
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64SliceVar(&supports, "supports", nil, "minimum support values (overrides sensitivity.supports)")
	f.Float64Var(&minConfidence, "min-confidence", 0, "fixed minimum confidence (overrides sensitivity.min_confidence)")
	f.Float64Var(&minLift, "min-lift", 0, "fixed minimum lift (overrides sensitivity.min_lift)")
	f.IntVar(&topN, "top", 0, "rules kept per support value (overrides sensitivity.top_n)")
	return cmd
}
