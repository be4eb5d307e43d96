package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoArmGo/PhotoApp/internal/adapter/probe"
	"github.com/GoArmGo/PhotoApp/internal/adapter/storage/filesystem"
	"github.com/GoArmGo/PhotoApp/internal/adapter/storage/minio"
	"github.com/GoArmGo/PhotoApp/internal/app"
	"github.com/GoArmGo/PhotoApp/internal/config"
	"github.com/GoArmGo/PhotoApp/internal/core/ports"
	"github.com/GoArmGo/PhotoApp/internal/database/client"
	"github.com/GoArmGo/PhotoApp/internal/database/storage"
	"github.com/GoArmGo/PhotoApp/internal/domain"
	"github.com/GoArmGo/PhotoApp/internal/handler"
	"github.com/GoArmGo/PhotoApp/internal/logger"
	"github.com/GoArmGo/PhotoApp/internal/media"
	"github.com/GoArmGo/PhotoApp/internal/rabbitmq"
	"github.com/GoArmGo/PhotoApp/internal/ratelimit"
	"github.com/GoArmGo/PhotoApp/internal/usecase"
	"github.com/GoArmGo/PhotoApp/internal/worker"
)

// BuildApp инициализирует все зависимости и возвращает готовый объект App.
func BuildApp(ctx context.Context, mode string) (*app.App, error) {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	slogCfg := logger.SlogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}
	slogger := logger.NewSlog(slogCfg)

	slogger.Info("logger initialized", "level", cfg.LogLevel, "format", cfg.LogFormat)

	var closers []func() error
	fail := func(err error) (*app.App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	// 2. libvips нужен только для WebP
	if err := media.InitVips(slogger); err != nil {
		if cfg.DeliveryFormat == string(media.FormatWebP) {
			slogger.Warn("libvips unavailable, webp derivatives will fail", "error", err)
		} else {
			slogger.Info("libvips unavailable", "error", err)
		}
	}

	// 3. База метаданных
	dbClient, err := client.NewClient(cfg, slogger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, dbClient.Close)

	// 4. Инициализация хранилищ
	photoStorage := storage.NewPhotoStorage(dbClient.DB, slogger)
	albumStorage := storage.NewAlbumStorage(dbClient.DB, slogger)

	objectStorage, err := buildObjectStorage(ctx, cfg, slogger)
	if err != nil {
		return fail(err)
	}

	// 5. Очередь ремонта
	var (
		repairPublisher ports.PhotoRepairPublisher
		repairConsumer  ports.PhotoRepairConsumer
	)
	if cfg.RepairViaQueue || mode == app.ModeWorker {
		rabbitMQClient, err := rabbitmq.NewClient(cfg, slogger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, rabbitMQClient.Close)
		repairPublisher = rabbitMQClient
		repairConsumer = rabbitMQClient
	}

	// 6. Фоновые задачи, лимитер, проверка URL
	pool := worker.NewPool(cfg.Workers(), cfg.TaskTimeout, slogger.With("component", "worker_pool"))
	limiter := ratelimit.New(cfg.CreateRatePerSecond, cfg.CreateBurst)
	prober := probe.NewHTTPProber(cfg, slogger)

	deliveryFormat, err := media.ParseFormat(cfg.DeliveryFormat)
	if err != nil {
		return fail(err)
	}
	transcoder := media.NewTranscoder(deliveryFormat, cfg.OriginalQuality, cfg.DerivativeQuality)

	// 7. Инициализация бизнес-логики (usecases)
	photoUseCase := usecase.NewPhotoUseCase(
		usecase.Deps{
			Photos:          photoStorage,
			Albums:          albumStorage,
			Objects:         objectStorage,
			Transcoder:      transcoder,
			Limiter:         limiter,
			Runner:          pool,
			RepairPublisher: repairPublisher,
			Prober:          prober,
			Logger:          slogger,
		},
		usecase.Options{
			Tiers:          domain.NewTiers(cfg.DerivativeWidths),
			MaxUploadBytes: cfg.MaxUploadBytes,
			UploadAttempts: cfg.DerivativeUploadAttempts,
			RandomIDs:      cfg.PhotoIDMode == config.PhotoIDModeRandom,
			RepairViaQueue: cfg.RepairViaQueue,
		},
	)

	photoHandler := handler.NewPhotoHandler(photoUseCase, albumStorage, cfg.MaxUploadBytes, slogger.With("component", "http"))
	if len(cfg.ServiceTokens) == 0 {
		slogger.Warn("SERVICE_TOKENS is empty, mutating routes are not protected")
	}

	// 8. Сборка итогового приложения
	application := app.NewApp(
		cfg,
		slogger,
		photoUseCase,
		photoHandler,
		repairConsumer,
		pool,
		closers...,
	)

	slogger.Info("dependencies initialized",
		"storage_engine", cfg.StorageEngine,
		"database_driver", cfg.DatabaseDriver,
		"tiers", cfg.DerivativeWidths,
		"workers", cfg.Workers(),
		"repair_via_queue", cfg.RepairViaQueue,
	)
	return application, nil
}

// buildObjectStorage выбирает бэкенд хранилища по STORAGE_ENGINE
func buildObjectStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (ports.ObjectStorage, error) {
	switch cfg.StorageEngine {
	case config.StorageEngineS3:
		return minio.NewMinioClient(ctx, cfg, log) // S3 / MinIO адаптер
	case config.StorageEngineFilesystem:
		return filesystem.NewStorage(cfg.FilesystemBasePath)
	}
	return nil, fmt.Errorf("unknown storage engine %q", cfg.StorageEngine)
}
