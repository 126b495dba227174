package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goextract/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if errors.Is(err, app.ErrNoMatches) {
			log.Warn().Msg("no matches")
		} else {
			log.Error().Err(err).Msg("run failed")
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps run errors to the process exit status: 2 when the run
// completed without any match under --fail-empty, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrNoMatches):
		return 2
	}
	return 1
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	log.Debug().Str("run_id", a.RunID()).Int("inputs", len(cfg.Inputs)).Msg("starting")
	_, err = a.Run(ctx)
	return err
}
