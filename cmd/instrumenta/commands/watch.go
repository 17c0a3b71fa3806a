package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openfroyo/instrumenta/pkg/config"
	"github.com/openfroyo/instrumenta/pkg/engine"
)

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var command string

	cmd := &cobra.Command{
		Use:   "watch <manifest>...",
		Short: "Re-run manifests whenever they change",
		Long: `Run the manifests once, then watch them and run them again after each
change. Only changed resources are touched because every task is idempotent.`,
		Example: `  instrumenta watch ./tasks --state-backend sqlite --state state.db`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, env, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			w := cmd.OutOrStdout()
			watcher := config.NewWatcher(env.telemetry.Logger, config.DefaultDebounce)
			return watcher.Watch(ctx, args, func(ctx context.Context, tasks []*engine.Task) error {
				env.telemetry.Logger.Debug().Strs("tasks", manifestTaskIDs(tasks)).Msg("Running manifests")
				summary, err := env.runner.Run(ctx, tasks, command, opts.execContext)
				if summary != nil {
					if perr := printResults(w, summary); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&command, "command", "x", "apply", "command to run on each change")

	return cmd
}
