package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully stops the HTTP server and releases resources.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.shutdownHTTPServer(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Wait for all goroutines
	a.wg.Wait()

	err = a.Close()

	a.logger.Info("application-shutdown-complete")

	return err
}

// Close releases storage and cache. Used directly by one-shot commands.
func (a *App) Close() error {
	a.cancel()

	a.shutdownCache()

	err := a.shutdownStorage()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
		return err
	}
	return nil
}

func (a *App) shutdownHTTPServer(ctx context.Context) error {
	return a.httpServer.Shutdown(ctx)
}

func (a *App) shutdownCache() {
	a.cache.Close()
}

func (a *App) shutdownStorage() error {
	return a.storage.Close()
}
