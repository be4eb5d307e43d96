package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/GoArmGo/PhotoApp/internal/config"
	"github.com/GoArmGo/PhotoApp/internal/handler"
)

// runServer запускает HTTP сервер и блокируется до отмены ctx
func runServer(
	ctx context.Context,
	cfg *config.Config,
	photoHandler *handler.PhotoHandler,
	logger *slog.Logger,
) error {
	router := handler.NewRouter(photoHandler, handler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		ServiceTokens:  cfg.ServiceTokens,
		Logger:         logger,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, stopping http server")

	// Graceful Shutdown
	ctxServer, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxServer); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("http server stopped")
	return nil
}
