// internal/domain/album.go
package domain

import "time"

// Album представляет альбом, которым владеет внешняя система.
// Здесь хранится только то, что нужно для проверки существования и связи с фото.
// Соответствует таблице 'albums' в базе данных.
type Album struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
