package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded sweep runs",
		Long:  "Lists runs recorded in the run history database, newest first. Requires storage.db_path.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireStorage(a); err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := openStorage(ctx, a.cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			runs, err := st.ListRuns(ctx, limit)
			if err != nil {
				return eris.Wrap(err, "runs")
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
				return nil
			}

			formatRunsList(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Long:  "Shows the stored summary rows of a run. The id may be shortened to any unique prefix, such as the one listed by runs.",
		Short: "Show the summary rows of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStorage(a); err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := openStorage(ctx, a.cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			id, err := st.ResolveRunID(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			points, err := st.GetPoints(ctx, id)
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			if len(points) == 0 {
				return eris.Errorf("runs show: no points recorded for run %s", id)
			}

			formatPoints(cmd.OutOrStdout(), points)
			return nil
		},
	}
	cmd.AddCommand(show)
	return cmd
}
