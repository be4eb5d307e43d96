package ports

import (
	"context"
	"errors"
)

var (
	// ErrObjectNotFound возвращается, когда объекта с таким ключом нет в хранилище
	ErrObjectNotFound = errors.New("object not found")
	// ErrURLUnsupported возвращается бэкендами, которые не умеют отдавать URL.
	// Вызывающая сторона должна перейти на отдачу байтов.
	ErrURLUnsupported = errors.New("url mode is not supported by the storage engine")
)

// ObjectStorage определяет интерфейс файлового хранилища (S3/MinIO или локальный диск).
// Ключ объекта имеет вид {photo_id}_{quality}, см. domain.ObjectKey.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
	URL(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
