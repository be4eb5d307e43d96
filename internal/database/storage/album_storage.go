package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/core/ports"
	"github.com/GoArmGo/PhotoApp/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AlbumStorage - минимальное хранилище альбомов для проверки album_id при загрузке
type AlbumStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ ports.AlbumStorage = (*AlbumStorage)(nil)

func NewAlbumStorage(db *sqlx.DB, logger *slog.Logger) *AlbumStorage {
	return &AlbumStorage{db: db, logger: logger}
}

// AlbumExists проверяет существование альбома
func (s *AlbumStorage) AlbumExists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(`SELECT COUNT(*) FROM albums WHERE id = ?`), id); err != nil {
		s.logger.Error("failed to check album", "album_id", id, "error", err)
		return false, fmt.Errorf("ошибка при проверке альбома: %w", err)
	}
	return count > 0, nil
}

// CreateAlbum создает альбом с новым UUID
func (s *AlbumStorage) CreateAlbum(ctx context.Context, name string) (*domain.Album, error) {
	start := time.Now()

	album := domain.Album{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO albums (id, name, created_at)
		VALUES (:id, :name, :created_at)
	`, &album)
	if err != nil {
		s.logger.Error("failed to insert album", "name", name, "error", err)
		return nil, fmt.Errorf("insert album: %w", err)
	}

	s.logger.Info("album created successfully",
		"album_id", album.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &album, nil
}
