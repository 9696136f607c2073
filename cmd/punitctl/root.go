package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Execute(ctx context.Context) error {
	root := &cobra.Command{Use: "punitctl", Short: "PUnit: a probabilistic testing framework CLI"}
	root.AddCommand(validateCmd(ctx))
	root.AddCommand(explainCmd(ctx))
	root.AddCommand(serveCmd(ctx))
	log.Info().Msg("punitctl starting")
	return root.ExecuteContext(ctx)
}
