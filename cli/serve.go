package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/surajsub/temporal-powerbi-refresh/activities"
	"github.com/surajsub/temporal-powerbi-refresh/config"
	"github.com/surajsub/temporal-powerbi-refresh/handlers"
	"github.com/surajsub/temporal-powerbi-refresh/logger"
	"github.com/surajsub/temporal-powerbi-refresh/workers"
	"go.temporal.io/sdk/client"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var apiOnly, workerOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh worker and the REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if apiOnly && workerOnly {
				return errors.New("--api-only and --worker-only are mutually exclusive")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			deps, err := buildDependencies(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			log := deps.Logger

			zl, err := logger.NewZapLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer zl.Sync()
			opts := client.Options{
				HostPort:  cfg.Temporal.HostPort,
				Namespace: cfg.Temporal.Namespace,
				Logger:    logger.NewZapAdapter(zl),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !apiOnly {
				c, err := client.Dial(opts)
				if err != nil {
					return err
				}
				defer c.Close()

				manager := workers.NewWorkerManager(c, &activities.Activities{Deps: deps}, log)
				if err := manager.StartWorker(cfg.Temporal.TaskQueue); err != nil {
					return err
				}
				defer manager.StopAll()
			}

			if workerOnly {
				<-ctx.Done()
				log.Info("Shutting down gracefully...")
				return nil
			}

			handlers.StartTemporalClient(ctx, opts, log)

			e := echo.New()
			e.HideBanner = true
			e.HTTPErrorHandler = handlers.CustomHTTPErrorHandler
			e.Use(handlers.RequestIDMiddleware)
			e.Use(middleware.Logger())
			e.Use(middleware.Recover())
			handlers.RegisterRoutes(e, handlers.GetClient, handlers.Settings{
				TaskQueue:       cfg.Temporal.TaskQueue,
				Namespace:       cfg.Temporal.Namespace,
				PollInterval:    cfg.PollInterval,
				PollMaxAttempts: cfg.PollMaxAttempts,
				Logger:          log,
			})

			errCh := make(chan error, 1)
			go func() {
				if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("Shutting down gracefully...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&apiOnly, "api-only", false, "serve the REST API without a worker")
	cmd.Flags().BoolVar(&workerOnly, "worker-only", false, "run the worker without the REST API")
	return cmd
}
