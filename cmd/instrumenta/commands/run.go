package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/instrumenta/pkg/config"
	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/runner"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	var command string

	cmd := &cobra.Command{
		Use:   "run <manifest>...",
		Short: "Process manifests with an arbitrary command",
		Long: `Process every task in the given manifests with a command.

The command selects the processor action through its link table. Commands a
processor does not know are treated as create.`,
		Example: `  # Apply every manifest in a directory
  instrumenta run ./tasks -x apply

  # Run a custom command in the prod context
  instrumenta run site.yaml -x info --context prod`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifests(cmd, opts, args, command)
		},
	}

	cmd.Flags().StringVarP(&command, "command", "x", "apply", "command to run")

	return cmd
}

func newShortcutCommand(opts *globalOptions, command, short string) *cobra.Command {
	return &cobra.Command{
		Use:     command + " <manifest>...",
		Short:   short,
		Example: fmt.Sprintf("  instrumenta %s ./tasks", command),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifests(cmd, opts, args, command)
		},
	}
}

func runManifests(cmd *cobra.Command, opts *globalOptions, paths []string, command string) error {
	tasks, err := config.LoadManifests(paths)
	if err != nil {
		return err
	}

	ctx, env, err := opts.setup(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	summary, runErr := env.runner.Run(ctx, tasks, command, opts.execContext)
	if summary != nil {
		if err := printResults(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	}
	return runErr
}

// runResults selects the entries published by this run's processed tasks.
func runResults(summary *runner.Summary) map[string]map[string]any {
	results := make(map[string]map[string]any)
	if summary.Store == nil {
		return results
	}
	for _, label := range summary.Processed {
		prefix := label + ":" + summary.Command + ":" + summary.Context + ":"
		fields := make(map[string]any)
		for _, key := range summary.Store.Keys() {
			if strings.HasPrefix(key, prefix) {
				value, _ := summary.Store.Get(key)
				fields[strings.TrimPrefix(key, prefix)] = value
			}
		}
		results[label] = fields
	}
	return results
}

func printResults(w io.Writer, summary *runner.Summary) error {
	out := map[string]any{
		"run":     summary.RunID,
		"command": summary.Command,
		"context": summary.Context,
		"results": runResults(summary),
	}
	if len(summary.Skipped) > 0 {
		out["skipped"] = summary.Skipped
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to print results: %w", err)
	}
	return enc.Close()
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate manifests without running them",
		Example: `  # Validate every manifest in a directory
  instrumenta validate ./tasks`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := config.LoadManifests(args)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, task := range tasks {
				fmt.Fprintf(w, "%s\t%s\n", task.Label(), task.Version)
			}
			fmt.Fprintf(w, "%d task(s) valid\n", len(tasks))
			return nil
		},
	}
}

// manifestTaskIDs is used by watch output.
func manifestTaskIDs(tasks []*engine.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.Label())
	}
	return ids
}
