package ports

import (
	"context"

	"github.com/GoArmGo/PhotoApp/internal/messaging/payloads"
)

// PhotoRepairPublisher определяет методы для публикации задач на восстановление качества фото.
// Используется оркестратором, когда ремонт выполняется воркером через очередь
type PhotoRepairPublisher interface {
	PublishPhotoRepairRequest(ctx context.Context, payload payloads.PhotoRepairPayload) error
}

// PhotoRepairConsumer определяет методы для потребления задач на восстановление
// будет использоваться воркером для получения задач из очереди
type PhotoRepairConsumer interface {
	// StartConsumingPhotoRepairRequests начинает прослушивание очереди
	// принимает функцию-обработчик, которая будет вызываться для каждого полученного сообщения
	StartConsumingPhotoRepairRequests(ctx context.Context, handler func(context.Context, payloads.PhotoRepairPayload) error) error
}

// ReachabilityProber проверяет, доступен ли ресурс по URL
type ReachabilityProber interface {
	Reachable(ctx context.Context, url string) bool
}
