package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/config"
	"github.com/GoArmGo/PhotoApp/internal/core/ports"
	"github.com/GoArmGo/PhotoApp/internal/handler"
	"github.com/GoArmGo/PhotoApp/internal/media"
	"github.com/GoArmGo/PhotoApp/internal/usecase"
	"github.com/GoArmGo/PhotoApp/internal/worker"
)

const (
	ModeServer = "server"
	ModeWorker = "worker"

	shutdownTimeout = 30 * time.Second
)

type App struct {
	Config              *config.Config
	logger              *slog.Logger
	photoUseCase        usecase.PhotoUseCase
	photoHandler        *handler.PhotoHandler
	photoRepairConsumer ports.PhotoRepairConsumer
	pool                *worker.Pool
	closers             []func() error
}

func NewApp(cfg *config.Config,
	logger *slog.Logger,
	photoUseCase usecase.PhotoUseCase,
	photoHandler *handler.PhotoHandler,
	photoRepairConsumer ports.PhotoRepairConsumer,
	pool *worker.Pool,
	closers ...func() error) *App {
	return &App{
		Config:              cfg,
		logger:              logger,
		photoUseCase:        photoUseCase,
		photoHandler:        photoHandler,
		photoRepairConsumer: photoRepairConsumer,
		pool:                pool,
		closers:             closers,
	}
}

// LoggerIns возвращает основной логгер приложения
func (a *App) LoggerIns() *slog.Logger {
	return a.logger
}

func (a *App) Run(ctx context.Context, mode string) error {
	// канал для graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting", "mode", mode)

	var err error

	switch mode {
	case ModeServer:
		err = runServer(ctx, a.Config, a.photoHandler, a.logger)

	case ModeWorker:
		err = runWorker(ctx, a.photoUseCase, a.photoRepairConsumer, a.logger)

	default:
		err = fmt.Errorf("неизвестный режим: %s (используйте 'server' или 'worker')", mode)
	}

	// аккуратно закрываем ресурсы
	if closeErr := a.Shutdown(); closeErr != nil {
		a.logger.Error("shutdown finished with errors", "error", closeErr)
	}

	return err
}

// Shutdown дожидается фоновых задач и закрывает все ресурсы приложения
func (a *App) Shutdown() error {
	var errs []error

	if a.pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	media.ShutdownVips()
	a.logger.Info("resources released")
	return errors.Join(errs...)
}
