// Command exchange runs the trading-competition exchange: it loads a JSON
// config file, wires up the order books, competitor roster, market-data
// replay, CSV outputs and execution/information servers, then runs until
// SIGINT/SIGTERM or the scripted market data is exhausted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"fenrir/internal/config"
	"fenrir/internal/controller"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	configPath := flag.String("config", "exchange.json", "path to the exchange JSON config file")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("exchange: loading config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t, ctx := tomb.WithContext(ctx)

	ctl, err := controller.New(t, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("exchange: building controller")
	}

	t.Go(func() error {
		return ctl.Run(t)
	})

	t.Go(func() error {
		<-ctx.Done()
		t.Kill(nil)
		return nil
	})

	if err := t.Wait(); err != nil {
		log.Fatal().Err(err).Msg("exchange: exited with error")
	}
	log.Info().Msg("exchange: shut down cleanly")
}
