package usecase

import (
	"context"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/domain"
	"github.com/GoArmGo/PhotoApp/internal/media"
	"github.com/GoArmGo/PhotoApp/internal/worker"
)

// TaskRunner исполняет фоновые задачи, не блокируя вызывающего (worker.Pool)
type TaskRunner interface {
	Submit(name string, task worker.Task) error
}

// CreateLimiter - ограничитель частоты создания фото
type CreateLimiter interface {
	// Allow возвращает false и время до следующей попытки, если лимит исчерпан
	Allow() (bool, time.Duration)
}

// CreatePhotoInput - загружаемые байты и необязательный альбом
type CreatePhotoInput struct {
	Data    []byte
	AlbumID string
}

// CreatePhotoResult - созданное фото. Created=false, если такие же байты уже загружались
type CreatePhotoResult struct {
	Photo   *domain.Photo
	Created bool
}

// GetPhotoInput описывает запрос на чтение фото.
// Пустой Quality означает Original, пустой Format - формат хранения.
type GetPhotoInput struct {
	ID      string
	Quality domain.Quality
	Format  media.Format
	URLMode bool
}

// PhotoContent - отдаваемое фото: либо URL, либо байты.
// Quality - фактически отданное качество, Fallback=true, если это не запрошенное.
type PhotoContent struct {
	URL         string
	Data        []byte
	ContentType string
	Quality     domain.Quality
	Fallback    bool
}

// BatchOutcome - результат пакетной операции для одного id
type BatchOutcome struct {
	ID      string           `json:"id"`
	Photo   *domain.Photo    `json:"photo,omitempty"`
	Deleted bool             `json:"deleted,omitempty"`
	Kind    domain.ErrorKind `json:"error_kind,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// PhotoUseCase определяет интерфейс бизнес-логики конвейера фото
type PhotoUseCase interface {
	// CreatePhoto принимает байты, сохраняет Original и ставит производные качества в фон
	CreatePhoto(ctx context.Context, in CreatePhotoInput) (*CreatePhotoResult, error)

	// GetPhoto отдает фото в запрошенном качестве с откатом на Original
	GetPhoto(ctx context.Context, in GetPhotoInput) (*PhotoContent, error)

	// DeletePhoto удаляет метаданные и все объекты фото
	DeletePhoto(ctx context.Context, id string) error

	// ReportBroken проверяет качество и при необходимости планирует его восстановление.
	// Возвращает true, если ремонт запланирован
	ReportBroken(ctx context.Context, id string, quality domain.Quality) (bool, error)

	// RepairPhoto синхронно пересоздает одно качество из Original
	RepairPhoto(ctx context.Context, id string, quality domain.Quality) error

	// GetPhotoMetadata возвращает фото со списком полей EXIF и записей качеств
	GetPhotoMetadata(ctx context.Context, id string) (*domain.Photo, error)

	// GetPhotos возвращает метаданные нескольких фото, не более 100 id за запрос
	GetPhotos(ctx context.Context, ids []string) ([]BatchOutcome, error)

	// DeletePhotos удаляет несколько фото, каждое по правилам DeletePhoto
	DeletePhotos(ctx context.Context, ids []string) ([]BatchOutcome, error)

	// ListPhotos получает страницу фото, новые первыми
	ListPhotos(ctx context.Context, albumID string, page, perPage int) ([]domain.Photo, error)
}
