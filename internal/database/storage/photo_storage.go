package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/core/ports"
	"github.com/GoArmGo/PhotoApp/internal/domain"
	"github.com/jmoiron/sqlx"
)

// PhotoStorage хранит фото, поля EXIF, связи с альбомами и записи о качествах.
// Запросы пишутся с плейсхолдерами ? и переводятся под драйвер через Rebind.
type PhotoStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ ports.PhotoStorage = (*PhotoStorage)(nil)

func NewPhotoStorage(db *sqlx.DB, logger *slog.Logger) *PhotoStorage {
	return &PhotoStorage{db: db, logger: logger}
}

// SavePhoto сохраняет метаданные фотографии в базе данных одной транзакцией
func (s *PhotoStorage) SavePhoto(ctx context.Context, photo *domain.Photo) error {
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, tx.Rebind(`
	INSERT INTO photos (id, hash, mime_type, width, height, captured_at, uploaded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`),
		photo.ID, photo.Hash, photo.MimeType, photo.Width, photo.Height, photo.CapturedAt, photo.UploadedAt,
	)
	if err != nil {
		s.logger.Error("failed to save photo", "id", photo.ID, "error", err)
		return fmt.Errorf("ошибка при сохранении фото: %w", err)
	}

	insertField := tx.Rebind(`INSERT INTO photo_exif (photo_id, position, tag, value) VALUES (?, ?, ?, ?)`)
	for i := range photo.Exif {
		photo.Exif[i].PhotoID = photo.ID
		photo.Exif[i].Position = i
		f := photo.Exif[i]
		if _, err := tx.ExecContext(ctx, insertField, f.PhotoID, f.Position, f.Key, f.Value); err != nil {
			s.logger.Error("failed to save exif field", "id", photo.ID, "tag", f.Key, "error", err)
			return fmt.Errorf("ошибка при сохранении поля EXIF %s: %w", f.Key, err)
		}
	}

	insertLink := tx.Rebind(`INSERT INTO photo_albums (photo_id, album_id) VALUES (?, ?)`)
	for _, albumID := range photo.Albums {
		if _, err := tx.ExecContext(ctx, insertLink, photo.ID, albumID); err != nil {
			s.logger.Error("failed to link photo to album", "id", photo.ID, "album_id", albumID, "error", err)
			return fmt.Errorf("ошибка при привязке фото к альбому: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	s.logger.Info("photo saved successfully",
		"id", photo.ID,
		"exif_fields", len(photo.Exif),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// GetPhotoByID получает фото со всеми связанными данными; (nil, nil), если фото нет
func (s *PhotoStorage) GetPhotoByID(ctx context.Context, id string) (*domain.Photo, error) {
	return s.getPhoto(ctx, "id", id)
}

// GetPhotoByHash ищет фото по отпечатку содержимого
func (s *PhotoStorage) GetPhotoByHash(ctx context.Context, hash string) (*domain.Photo, error) {
	return s.getPhoto(ctx, "hash", hash)
}

func (s *PhotoStorage) getPhoto(ctx context.Context, column, value string) (*domain.Photo, error) {
	start := time.Now()

	var photo domain.Photo
	query := s.db.Rebind(fmt.Sprintf(`
	SELECT id, hash, mime_type, width, height, captured_at, uploaded_at
	FROM photos WHERE %s = ? LIMIT 1`, column))

	if err := s.db.GetContext(ctx, &photo, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("photo not found", column, value)
			return nil, nil
		}
		s.logger.Error("failed to get photo", column, value, "error", err)
		return nil, fmt.Errorf("ошибка при получении фото по %s: %w", column, err)
	}

	if err := s.db.SelectContext(ctx, &photo.Exif, s.db.Rebind(`
	SELECT photo_id, position, tag, value FROM photo_exif
	WHERE photo_id = ? ORDER BY position`), photo.ID); err != nil {
		return nil, fmt.Errorf("ошибка при получении полей EXIF: %w", err)
	}

	if err := s.db.SelectContext(ctx, &photo.Albums, s.db.Rebind(`
	SELECT album_id FROM photo_albums WHERE photo_id = ? ORDER BY album_id`), photo.ID); err != nil {
		return nil, fmt.Errorf("ошибка при получении альбомов фото: %w", err)
	}

	if err := s.db.SelectContext(ctx, &photo.Derivatives, s.db.Rebind(`
	SELECT photo_id, quality, available, url, width, height, updated_at
	FROM photo_derivatives WHERE photo_id = ? ORDER BY quality`), photo.ID); err != nil {
		return nil, fmt.Errorf("ошибка при получении записей качеств: %w", err)
	}

	s.logger.Debug("photo retrieved",
		column, value,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &photo, nil
}

// ListPhotos возвращает страницу фото, новые первыми. albumID сужает выборку до альбома.
func (s *PhotoStorage) ListPhotos(ctx context.Context, albumID string, page, perPage int) ([]domain.Photo, error) {
	start := time.Now()

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	var (
		q    string
		args []any
	)
	if albumID == "" {
		q = `
	SELECT id, hash, mime_type, width, height, captured_at, uploaded_at
	FROM photos
	ORDER BY uploaded_at DESC, id
	LIMIT ? OFFSET ?`
		args = []any{perPage, offset}
	} else {
		q = `
	SELECT p.id, p.hash, p.mime_type, p.width, p.height, p.captured_at, p.uploaded_at
	FROM photos p
	JOIN photo_albums pa ON pa.photo_id = p.id
	WHERE pa.album_id = ?
	ORDER BY p.uploaded_at DESC, p.id
	LIMIT ? OFFSET ?`
		args = []any{albumID, perPage, offset}
	}

	photos := []domain.Photo{}
	if err := s.db.SelectContext(ctx, &photos, s.db.Rebind(q), args...); err != nil {
		s.logger.Error("failed to list photos", "album_id", albumID, "page", page, "per_page", perPage, "error", err)
		return nil, fmt.Errorf("ошибка при получении списка фото: %w", err)
	}

	s.logger.Debug("photos listed",
		"album_id", albumID,
		"found", len(photos),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return photos, nil
}

// LinkAlbum добавляет связь фото с альбомом, существующая связь не дублируется
func (s *PhotoStorage) LinkAlbum(ctx context.Context, photoID, albumID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
	INSERT INTO photo_albums (photo_id, album_id) VALUES (?, ?)
	ON CONFLICT (photo_id, album_id) DO NOTHING`), photoID, albumID)
	if err != nil {
		s.logger.Error("failed to link photo to album", "id", photoID, "album_id", albumID, "error", err)
		return fmt.Errorf("ошибка при привязке фото к альбому: %w", err)
	}
	return nil
}

// DeletePhoto удаляет фото и все зависимые строки в одной транзакции
func (s *PhotoStorage) DeletePhoto(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"photo_derivatives", "photo_exif", "photo_albums"} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE photo_id = ?`), id); err != nil {
			return fmt.Errorf("ошибка при удалении из %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM photos WHERE id = ?`), id); err != nil {
		return fmt.Errorf("ошибка при удалении фото: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	s.logger.Info("photo metadata deleted", "id", id)
	return nil
}

// MarkDerivative создает или обновляет запись о качестве
func (s *PhotoStorage) MarkDerivative(ctx context.Context, record domain.DerivativeRecord) error {
	if record.UpdatedAt == 0 {
		record.UpdatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
	INSERT INTO photo_derivatives (photo_id, quality, available, url, width, height, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (photo_id, quality) DO UPDATE SET
		available = excluded.available,
		url = excluded.url,
		width = excluded.width,
		height = excluded.height,
		updated_at = excluded.updated_at`),
		record.PhotoID, record.Quality, record.Available, record.URL, record.Width, record.Height, record.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("failed to mark derivative", "photo_id", record.PhotoID, "quality", record.Quality, "error", err)
		return fmt.Errorf("ошибка при сохранении записи качества: %w", err)
	}
	return nil
}

// InvalidateDerivative снимает флаг доступности у качества
func (s *PhotoStorage) InvalidateDerivative(ctx context.Context, photoID string, quality domain.Quality) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
	UPDATE photo_derivatives SET available = ?, updated_at = ?
	WHERE photo_id = ? AND quality = ?`),
		false, time.Now().Unix(), photoID, quality,
	)
	if err != nil {
		return fmt.Errorf("ошибка при сбросе записи качества: %w", err)
	}
	return nil
}

// GetDerivative возвращает запись о качестве; (nil, nil), если ее нет
func (s *PhotoStorage) GetDerivative(ctx context.Context, photoID string, quality domain.Quality) (*domain.DerivativeRecord, error) {
	var record domain.DerivativeRecord
	err := s.db.GetContext(ctx, &record, s.db.Rebind(`
	SELECT photo_id, quality, available, url, width, height, updated_at
	FROM photo_derivatives WHERE photo_id = ? AND quality = ?`), photoID, quality)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении записи качества: %w", err)
	}
	return &record, nil
}
