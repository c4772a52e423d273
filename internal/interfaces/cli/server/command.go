package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/orris-inc/autopay/internal/infrastructure/database"
	"github.com/orris-inc/autopay/internal/infrastructure/migration"
	"github.com/orris-inc/autopay/internal/interfaces/cli/bootstrap"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/shared/version"
)

var (
	env                string
	autoMigrate        bool
	skipMigrationCheck bool
	runWorker          bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the autopay HTTP API. With --with-worker the task consumers and the renewal scheduler run in the same process.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")
	cmd.Flags().BoolVar(&skipMigrationCheck, "skip-migration-check", false, "Skip migration status check on startup")
	cmd.Flags().BoolVar(&runWorker, "with-worker", false, "Run task consumers alongside the HTTP server")

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
	rt.Config.Server.Mode = bootstrap.MapEnvToGinMode(env)

	log.Infow("starting server",
		"environment", env,
		"version", version.String(),
		"auto_migrate", autoMigrate,
		"with_worker", runWorker)

	gin.SetMode(rt.Config.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := handleMigrations(env, log); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	container, err := rt.NewContainer()
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	container.SetupRoutes()

	if runWorker {
		if err := container.StartBackground(context.Background(), rt.Config.Worker.RunSchedulerInProc); err != nil {
			return fmt.Errorf("failed to start background services: %w", err)
		}
	}

	srv := &http.Server{
		Addr:         rt.Config.Server.GetAddr(),
		Handler:      container.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("server starting",
			"address", rt.Config.Server.GetAddr(),
			"mode", rt.Config.Server.Mode)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigDone := make(chan struct{})
	go func() {
		sig := bootstrap.WaitForSignal()
		log.Infow("received shutdown signal", "signal", sig.String())
		close(sigDone)
	}()

	var runErr error
	select {
	case err, ok := <-serveErr:
		if ok {
			log.Errorw("failed to start server", "error", err)
			runErr = err
		}
	case <-sigDone:
	}

	log.Infow("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), rt.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if err := container.Shutdown(ctx); err != nil {
		log.Errorw("background services did not stop cleanly", "error", err)
		runErr = errors.Join(runErr, err)
	}

	if runErr == nil {
		log.Infow("server exited gracefully")
	}
	return runErr
}

func handleMigrations(environment string, log logger.Interface) error {
	if skipMigrationCheck {
		log.Infow("skipping migration check")
		return nil
	}

	if autoMigrate {
		if environment == "production" {
			log.Warnw("auto-migration is enabled in production environment - this is not recommended!")
		}

		strategy := migration.ForEnvironment(environment, log)
		log.Infow("running auto-migration", "strategy", strategy.GetName())
		if err := strategy.Migrate(database.Get()); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		log.Infow("auto-migration completed successfully")
		return nil
	}

	current, err := migration.NewGooseStrategy("mysql", log).GetVersion(database.Get())
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	log.Infow("current migration version", "version", current)
	return nil
}
