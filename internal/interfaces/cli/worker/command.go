// Package worker runs the task consumers and the renewal scheduler
// without the HTTP API.
package worker

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orris-inc/autopay/internal/interfaces/cli/bootstrap"
	"github.com/orris-inc/autopay/internal/shared/version"
)

var (
	env           string
	withScheduler bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start the task worker",
		Long:  `Consume renewal, retry, refund and notification tasks. The daily collection and sweep jobs run here unless --scheduler=false.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "Run the daily collection and sweep jobs in this process")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	env = bootstrap.ResolveEnv(env)

	rt, err := bootstrap.Init(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	log := rt.Logger
	log.Infow("starting worker",
		"environment", env,
		"version", version.String(),
		"scheduler", withScheduler,
		"concurrency", rt.Config.Worker.Concurrency)

	container, err := rt.NewContainer()
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}

	if err := container.StartBackground(context.Background(), withScheduler); err != nil {
		return fmt.Errorf("failed to start background services: %w", err)
	}

	sig := bootstrap.WaitForSignal()
	log.Infow("received shutdown signal", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), rt.ShutdownTimeout())
	defer cancel()

	if err := container.Shutdown(ctx); err != nil {
		log.Errorw("worker did not stop cleanly", "error", err)
		return err
	}

	log.Infow("worker stopped")
	return nil
}
