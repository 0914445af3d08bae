package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/pipeline"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a pipeline worker",
	Long: `Run a pipeline worker process.

Workers consume the durable jobs queue and execute stage handlers:
chapter overviews, structured analysis, atomic notes, work-level
synthesis, and folder organization. Results are written to DefraDB and
progress events are broadcast for API subscribers.

Run more than one worker against the same broker to process chapters
in parallel; each delivery goes to exactly one worker.

Examples:
  tome worker                    # Consume jobs until interrupted`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		services, cleanup, err := buildServices(ctx, bootstrapOptions{needBroker: true, needGateway: true})
		if err != nil {
			return err
		}
		defer cleanup()

		w := pipeline.NewWorker(
			services.Store,
			services.Broker,
			services.Gateway,
			services.Config.Get().Pipeline,
			services.Logger,
		)

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		services.Logger.Info("worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
