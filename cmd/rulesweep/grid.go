package main

import (
	"github.com/spf13/cobra"

	"github.com/rewired-gh/rulesweep/internal/logger"
	"github.com/rewired-gh/rulesweep/internal/sweep"
)

func newGridCmd(a *app) *cobra.Command {
	var (
		supports    []float64
		confidences []float64
		lifts       []float64
		topN        int
	)

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Sweep every support x confidence x lift combination",
		Long: "Mines rules at each support value, filters them by every confidence and lift combination, " +
			"writes the top rules of each combination and a summary table.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			g := &a.cfg.Grid
			if flags.Changed("supports") {
				g.Supports = supports
			}
			if flags.Changed("confidences") {
				g.Confidences = confidences
			}
			if flags.Changed("lifts") {
				g.Lifts = lifts
			}
			if flags.Changed("top") {
				g.TopN = topN
			}
			if err := a.validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := a.begin(ctx, modeGrid, map[string]interface{}{
				"supports":             g.Supports,
				"confidences":          g.Confidences,
				"lifts":                g.Lifts,
				"top_n":                g.TopN,
				"metric":               a.cfg.Miner.Metric,
				"generation_threshold": a.cfg.Miner.GenerationThreshold,
			})
			if err != nil {
				return err
			}

			res, err := s.driver.RunGrid(ctx, sweep.GridParams{
				Supports:    g.Supports,
				Confidences: g.Confidences,
				Lifts:       g.Lifts,
				TopN:        g.TopN,
			})
			if err != nil {
				s.fail(ctx, err)
				return err
			}
			if err := s.finish(ctx, gridPoints(res), res.Degraded, nil, artifacts(res)); err != nil {
				return err
			}

			printTable(cmd.OutOrStdout(), res.Table.Header(), res.Table.Records())
			logger.Info("Grid summary written to %s", res.Summary[0])
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64SliceVar(&supports, "supports", nil, "minimum support values (overrides grid.supports)")
	f.Float64SliceVar(&confidences, "confidences", nil, "minimum confidence values (overrides grid.confidences)")
	f.Float64SliceVar(&lifts, "lifts", nil, "minimum lift values (overrides grid.lifts)")
	f.IntVar(&topN, "top", 0, "rules kept per combination (overrides grid.top_n)")
	return cmd
}
