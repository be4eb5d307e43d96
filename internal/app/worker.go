package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/core/ports"
	"github.com/GoArmGo/PhotoApp/internal/domain"
	"github.com/GoArmGo/PhotoApp/internal/messaging/payloads"
	"github.com/GoArmGo/PhotoApp/internal/usecase"
)

// repairHandler возвращает обработчик сообщений очереди ремонта
func repairHandler(photoUseCase usecase.PhotoUseCase, logger *slog.Logger) func(context.Context, payloads.PhotoRepairPayload) error {
	return func(ctx context.Context, payload payloads.PhotoRepairPayload) error {
		start := time.Now()

		quality, err := domain.ParseQuality(payload.Quality)
		if err != nil {
			return domain.BadInput("repair_photo", "invalid quality in repair request", err)
		}

		// Вызываем PhotoUseCase для выполнения реальной работы
		if err := photoUseCase.RepairPhoto(ctx, payload.PhotoID, quality); err != nil {
			logger.Error("repair failed", "photo_id", payload.PhotoID, "quality", quality, "error", err)
			return err
		}
		logger.Info("repair finished",
			"photo_id", payload.PhotoID,
			"quality", quality,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}
}

// runWorker запускает потребителя RabbitMQ и блокируется до отмены ctx
func runWorker(
	ctx context.Context,
	photoUseCase usecase.PhotoUseCase,
	photoRepairConsumer ports.PhotoRepairConsumer,
	logger *slog.Logger,
) error {
	if photoRepairConsumer == nil {
		return errors.New("worker mode requires RABBITMQ_URL")
	}

	logger.Info("worker started, waiting for repair requests")

	if err := photoRepairConsumer.StartConsumingPhotoRepairRequests(ctx, repairHandler(photoUseCase, logger)); err != nil {
		return fmt.Errorf("ошибка при запуске потребителя RabbitMQ: %w", err)
	}

	<-ctx.Done()
	logger.Info("worker stopping")
	return nil
}
