package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewPopulateCommand(cli.DefaultDependencies()).ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error populating database")
	}
}
