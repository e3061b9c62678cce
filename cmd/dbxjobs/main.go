package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattkinnersley/dbxjobs/internal/commands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.App().Run(ctx, os.Args)
	stop()

	if err != nil {
		log.Fatal().Err(err).Msg("dbxjobs failed")
	}
}
