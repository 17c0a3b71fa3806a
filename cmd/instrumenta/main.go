package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/instrumenta/cmd/instrumenta/commands"
	"github.com/openfroyo/instrumenta/pkg/telemetry"
)

// Set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	// Command errors and startup messages go through the global logger; the
	// runner gets its own logger from the --log-* flags.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(telemetry.ParseLogLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, Version, Commit, BuildDate)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
