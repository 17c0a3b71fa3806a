package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/instrumenta/pkg/stores"
)

func newStateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect persisted state",
	}
	cmd.AddCommand(newStateShowCommand(opts))
	cmd.AddCommand(newStateRunsCommand(opts))
	return cmd
}

func newStateShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the key/value store and task states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, env, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			state, err := env.runner.LoadState(ctx)
			if err != nil {
				return err
			}

			out := map[string]any{
				"keyValueStore": state.Store.Map(),
				"taskStates":    state.TaskStates,
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newStateRunsCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "runs",
		Short:   "List recent runs (sqlite backend only)",
		Example: `  instrumenta state runs --state-backend sqlite --state state.db --limit 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, env, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			recorder, ok := env.persistence.(stores.RunRecorder)
			if !ok {
				return fmt.Errorf("state backend %q does not record runs", opts.stateBackend)
			}
			runs, err := recorder.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCOMMAND\tCONTEXT\tSTATUS\tTASKS\tSTARTED")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
					run.ID, run.Command, run.Context, run.Status,
					run.TasksProcessed, run.TasksTotal, run.StartedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}
