package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	statePath     string
	stateBackend  string
	execContext   string
	logLevel      string
	logFormat     string
	metricsAddr   string
	traceExporter string
	traceEndpoint string
	version       string
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "instrumenta",
		Short: "Instrumenta - task processors for infrastructure automation",
		Long: `Instrumenta processes declarative task manifests against a persisted
key/value state.

Each task is handled by a processor selected by its kind:
  - CliInputPrompt asks the operator for a value
  - WebDownloadFile fetches a file over HTTP
  - WriteFile writes content to a local file
  - ShellScript runs an inline script or a script file

Results are published under {kind}:{taskId}:{command}:{context}:{FIELD} and
can be referenced by later tasks with ${KVS:key}.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.statePath, "state", "instrumenta-state.json", "state file path")
	flags.StringVar(&opts.stateBackend, "state-backend", "file", "state backend (file, sqlite)")
	flags.StringVar(&opts.execContext, "context", "default", "execution context the tasks run in")
	flags.StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&opts.traceExporter, "trace-exporter", "none", "trace exporter (otlp, stdout, none)")
	flags.StringVar(&opts.traceEndpoint, "trace-endpoint", "", "OTLP collector endpoint")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newShortcutCommand(opts, "apply", "Create or update the resources described by manifests"))
	rootCmd.AddCommand(newShortcutCommand(opts, "delete", "Destroy the resources described by manifests"))
	rootCmd.AddCommand(newShortcutCommand(opts, "describe", "Describe the current state of each resource"))
	rootCmd.AddCommand(newShortcutCommand(opts, "drift", "Detect drift between applied and actual state"))
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newWatchCommand(opts))
	rootCmd.AddCommand(newStateCommand(opts))

	return rootCmd
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
