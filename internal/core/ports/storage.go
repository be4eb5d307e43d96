package ports

import (
	"context"

	"github.com/GoArmGo/PhotoApp/internal/domain"
)

// PhotoStorage определяет методы для взаимодействия с хранилищем метаданных фотографий.
// Методы Get* возвращают (nil, nil), если запись не найдена.
type PhotoStorage interface {
	// SavePhoto сохраняет строку фото, поля EXIF и связи с альбомами одной транзакцией
	SavePhoto(ctx context.Context, photo *domain.Photo) error
	GetPhotoByID(ctx context.Context, id string) (*domain.Photo, error)
	GetPhotoByHash(ctx context.Context, hash string) (*domain.Photo, error)
	ListPhotos(ctx context.Context, albumID string, page, perPage int) ([]domain.Photo, error)
	// LinkAlbum привязывает фото к альбому; повторная привязка ничего не меняет
	LinkAlbum(ctx context.Context, photoID, albumID string) error
	// DeletePhoto удаляет фото вместе со всеми зависимыми строками
	DeletePhoto(ctx context.Context, id string) error

	// MarkDerivative создает или обновляет запись о доступности качества
	MarkDerivative(ctx context.Context, record domain.DerivativeRecord) error
	InvalidateDerivative(ctx context.Context, photoID string, quality domain.Quality) error
	GetDerivative(ctx context.Context, photoID string, quality domain.Quality) (*domain.DerivativeRecord, error)
}

// AlbumStorage - граница с внешним хранилищем альбомов
type AlbumStorage interface {
	AlbumExists(ctx context.Context, id string) (bool, error)
	CreateAlbum(ctx context.Context, name string) (*domain.Album, error)
}
