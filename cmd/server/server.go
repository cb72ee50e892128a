package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// serve runs the HTTP server, and the embedded offload worker when enabled,
// until ctx is cancelled or one of them fails. Running generations are given
// the shutdown timeout to finish their in-flight task.
func (app *application) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if app.config.Offload.WorkerEnabled {
		worker, err := app.newWorker()
		if err != nil {
			return fmt.Errorf("failed to initialize offload worker: %w", err)
		}
		g.Go(func() error { return worker.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout())
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
		}
		if err := app.manager.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler shutdown failed: %w", err))
		}
		app.cleanup()
		app.logger.Info("Server shutdown completed")
		return errors.Join(errs...)
	})

	return g.Wait()
}

func (app *application) shutdownTimeout() time.Duration {
	if app.config.Server.ShutdownTimeout > 0 {
		return app.config.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
