package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/core/ports"
	"github.com/GoArmGo/PhotoApp/internal/domain"
	"github.com/GoArmGo/PhotoApp/internal/media"
	"github.com/GoArmGo/PhotoApp/internal/messaging/payloads"
	"github.com/GoArmGo/PhotoApp/internal/metrics"
	"github.com/avast/retry-go"
	"github.com/google/uuid"
)

const (
	defaultPerPage = 30
	maxPerPage     = 100
	maxBatchSize   = 100
)

// Deps - зависимости конвейера. RepairPublisher и Prober могут быть nil.
type Deps struct {
	Photos          ports.PhotoStorage
	Albums          ports.AlbumStorage
	Objects         ports.ObjectStorage
	Transcoder      *media.Transcoder
	Limiter         CreateLimiter
	Runner          TaskRunner
	RepairPublisher ports.PhotoRepairPublisher
	Prober          ports.ReachabilityProber
	Logger          *slog.Logger
}

// Options - настраиваемое поведение конвейера
type Options struct {
	Tiers          domain.Tiers
	MaxUploadBytes int64
	UploadAttempts uint
	RetryDelay     time.Duration
	// RandomIDs выдает UUID вместо отпечатка в качестве id фото
	RandomIDs      bool
	RepairViaQueue bool
	Now            func() time.Time
}

// photoUseCase implements PhotoUseCase
type photoUseCase struct {
	Deps
	opts Options
	log  *slog.Logger
}

// NewPhotoUseCase создает новый экземпляр PhotoUseCase
func NewPhotoUseCase(deps Deps, opts Options) PhotoUseCase {
	if opts.UploadAttempts == 0 {
		opts.UploadAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &photoUseCase{
		Deps: deps,
		opts: opts,
		log:  deps.Logger.With("component", "photo_usecase"),
	}
}

// CreatePhoto выполняет синхронную часть загрузки: лимит, отпечаток, разбор заголовков и EXIF,
// декодирование, сохранение метаданных и Original. Производные качества генерируются в фоне.
func (uc *photoUseCase) CreatePhoto(ctx context.Context, in CreatePhotoInput) (*CreatePhotoResult, error) {
	const op = "create_photo"
	start := time.Now()

	// 1. Лимит частоты: при превышении никакой работы не выполняется
	if ok, retryAfter := uc.Limiter.Allow(); !ok {
		metrics.CreateRejectionsTotal.WithLabelValues("rate_limited").Inc()
		return nil, domain.RateLimited(op, retryAfter)
	}

	// 2. Размер
	if len(in.Data) == 0 {
		metrics.CreateRejectionsTotal.WithLabelValues("empty").Inc()
		return nil, domain.BadInput(op, "empty payload", nil)
	}
	if uc.opts.MaxUploadBytes > 0 && int64(len(in.Data)) > uc.opts.MaxUploadBytes {
		metrics.CreateRejectionsTotal.WithLabelValues("too_large").Inc()
		return nil, domain.BadInput(op, fmt.Sprintf("payload exceeds %d bytes", uc.opts.MaxUploadBytes), nil)
	}

	// 3. Отпечаток и заголовки
	hash := media.Fingerprint(in.Data)
	probe, err := media.Probe(in.Data)
	if err != nil {
		metrics.CreateRejectionsTotal.WithLabelValues("malformed_header").Inc()
		return nil, domain.BadInput(op, "malformed image header", err)
	}

	// 4. EXIF: ошибки разбора не мешают загрузке
	meta, err := media.ExtractMetadata(in.Data)
	if err != nil {
		if errors.Is(err, media.ErrNoMetadata) {
			uc.log.Debug("no exif metadata", "hash", hash)
		} else {
			uc.log.Warn("exif metadata discarded", "hash", hash, "error", err)
		}
	}
	probe = probe.Oriented(meta.Orientation)

	// 5. Декодирование: неподдерживаемые и битые файлы отклоняются без записи
	img, err := uc.Transcoder.Decode(in.Data)
	if err != nil {
		metrics.CreateRejectionsTotal.WithLabelValues("decode").Inc()
		return nil, domain.BadInput(op, "unsupported or corrupt image", err)
	}

	// 6. Альбом
	if in.AlbumID != "" {
		exists, err := uc.Albums.AlbumExists(ctx, in.AlbumID)
		if err != nil {
			return nil, domain.Unavailable(op, "album store", err)
		}
		if !exists {
			return nil, domain.NotFound(op, fmt.Sprintf("album %s not found", in.AlbumID))
		}
	}

	// 7. Повторная загрузка тех же байтов возвращает существующее фото
	existing, err := uc.Photos.GetPhotoByHash(ctx, hash)
	if err != nil {
		return nil, domain.Unavailable(op, "metadata store", err)
	}
	if existing != nil {
		uc.log.Info("photo already exists", "photo_id", existing.ID, "hash", hash)
		return uc.existingPhoto(ctx, op, existing, in.AlbumID)
	}

	// 8. Метаданные
	now := uc.opts.Now()
	photo := &domain.Photo{
		ID:         hash,
		Hash:       hash,
		MimeType:   probe.MimeType,
		Width:      probe.Width,
		Height:     probe.Height,
		CapturedAt: now.Unix(),
		UploadedAt: now.Unix(),
	}
	if uc.opts.RandomIDs {
		photo.ID = uuid.NewString()
	}
	if meta.CapturedAt != nil {
		photo.CapturedAt = meta.CapturedAt.Unix()
	}
	for _, f := range meta.Fields {
		photo.Exif = append(photo.Exif, domain.MetadataField{Key: f.Key, Value: f.Value})
	}
	if in.AlbumID != "" {
		photo.Albums = []string{in.AlbumID}
	}

	if err := uc.Photos.SavePhoto(ctx, photo); err != nil {
		// параллельная загрузка тех же байтов могла успеть раньше
		if winner, getErr := uc.Photos.GetPhotoByHash(ctx, hash); getErr == nil && winner != nil {
			return uc.existingPhoto(ctx, op, winner, in.AlbumID)
		}
		return nil, domain.Unavailable(op, "metadata store", err)
	}

	// 9. Original. Без него строка фото не должна остаться
	originalKey := domain.ObjectKey(photo.ID, domain.QualityOriginal)
	if err := uc.Objects.Put(ctx, originalKey, in.Data, photo.MimeType); err != nil {
		metrics.CreateRejectionsTotal.WithLabelValues("upload_failed").Inc()
		if delErr := uc.Photos.DeletePhoto(ctx, photo.ID); delErr != nil {
			uc.log.Error("failed to roll back photo metadata", "photo_id", photo.ID, "error", delErr)
		}
		return nil, domain.Unavailable(op, "storage engine", err)
	}

	// 10. Запись об Original: ошибка только логируется
	original := domain.DerivativeRecord{
		PhotoID:   photo.ID,
		Quality:   domain.QualityOriginal,
		Available: true,
		URL:       uc.objectURL(ctx, originalKey),
		Width:     photo.Width,
		Height:    photo.Height,
		UpdatedAt: now.Unix(),
	}
	if err := uc.Photos.MarkDerivative(ctx, original); err != nil {
		uc.log.Error("failed to record original availability", "photo_id", photo.ID, "error", err)
	}
	photo.Derivatives = []domain.DerivativeRecord{original}

	// 11. Производные качества в фоне
	for _, q := range uc.opts.Tiers {
		quality := q
		photoID := photo.ID
		err := uc.Runner.Submit("derive:"+photoID+":"+quality.String(), func(ctx context.Context) error {
			return uc.generate(ctx, photoID, quality, img)
		})
		if err != nil {
			uc.log.Error("failed to queue derivative", "photo_id", photoID, "quality", quality, "error", err)
		}
	}

	metrics.PhotosCreatedTotal.Inc()
	uc.log.Info("photo created",
		"photo_id", photo.ID,
		"mime_type", photo.MimeType,
		"width", photo.Width,
		"height", photo.Height,
		"exif_fields", len(photo.Exif),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &CreatePhotoResult{Photo: photo, Created: true}, nil
}

// existingPhoto возвращает уже загруженное фото, при необходимости привязывая его к альбому
func (uc *photoUseCase) existingPhoto(ctx context.Context, op string, photo *domain.Photo, albumID string) (*CreatePhotoResult, error) {
	if albumID == "" || containsString(photo.Albums, albumID) {
		return &CreatePhotoResult{Photo: photo, Created: false}, nil
	}

	if err := uc.Photos.LinkAlbum(ctx, photo.ID, albumID); err != nil {
		return nil, domain.Unavailable(op, "metadata store", err)
	}
	uc.log.Info("existing photo linked to album", "photo_id", photo.ID, "album_id", albumID)

	refreshed, err := uc.Photos.GetPhotoByID(ctx, photo.ID)
	if err != nil {
		return nil, domain.Unavailable(op, "metadata store", err)
	}
	if refreshed == nil {
		return nil, domain.NotFound(op, fmt.Sprintf("photo %s was deleted concurrently", photo.ID))
	}
	return &CreatePhotoResult{Photo: refreshed, Created: false}, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// generate масштабирует, кодирует, загружает с повторами и отмечает качество доступным.
func (uc *photoUseCase) generate(ctx context.Context, photoID string, quality domain.Quality, img image.Image) (err error) {
	start := time.Now()
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusFailure
		}
		metrics.DerivativeGenerationsTotal.WithLabelValues(quality.String(), status).Inc()
		metrics.DerivativeGenerationDuration.WithLabelValues(quality.String()).Observe(time.Since(start).Seconds())
	}()

	derived, err := uc.Transcoder.Derive(img, quality.Width())
	if err != nil {
		return fmt.Errorf("derive %s for %s: %w", quality, photoID, err)
	}

	key := domain.ObjectKey(photoID, quality)
	err = retry.Do(
		func() error {
			return uc.Objects.Put(ctx, key, derived.Data, derived.ContentType)
		},
		retry.Attempts(uc.opts.UploadAttempts),
		retry.Delay(uc.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			uc.log.Warn("derivative upload retry", "photo_id", photoID, "quality", quality, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	// фото могли удалить, пока шла генерация: объект не должен остаться без строки
	if uc.photoGone(ctx, photoID) {
		uc.discardOrphan(ctx, photoID, quality, key)
		return nil
	}

	record := domain.DerivativeRecord{
		PhotoID:   photoID,
		Quality:   quality,
		Available: true,
		URL:       uc.objectURL(ctx, key),
		Width:     derived.Width,
		Height:    derived.Height,
		UpdatedAt: uc.opts.Now().Unix(),
	}
	if err := uc.Photos.MarkDerivative(ctx, record); err != nil {
		if uc.photoGone(ctx, photoID) {
			uc.discardOrphan(ctx, photoID, quality, key)
			return nil
		}
		return fmt.Errorf("mark %s available: %w", key, err)
	}

	uc.log.Info("derivative generated",
		"photo_id", photoID,
		"quality", quality,
		"width", derived.Width,
		"height", derived.Height,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// photoGone сообщает, что строки фото больше нет. Ошибка чтения не считается удалением
func (uc *photoUseCase) photoGone(ctx context.Context, photoID string) bool {
	photo, err := uc.Photos.GetPhotoByID(ctx, photoID)
	if err != nil {
		uc.log.Warn("failed to re-check photo after upload", "photo_id", photoID, "error", err)
		return false
	}
	return photo == nil
}

func (uc *photoUseCase) discardOrphan(ctx context.Context, photoID string, quality domain.Quality, key string) {
	if err := uc.Objects.Delete(ctx, key); err != nil {
		uc.log.Error("failed to delete orphaned derivative", "photo_id", photoID, "quality", quality, "error", err)
		return
	}
	uc.log.Info("photo deleted during generation, derivative discarded", "photo_id", photoID, "quality", quality)
}

// objectURL возвращает URL объекта или пустую строку, если бэкенд URL не поддерживает
func (uc *photoUseCase) objectURL(ctx context.Context, key string) string {
	url, err := uc.Objects.URL(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrURLUnsupported) {
			uc.log.Warn("failed to resolve object url", "key", key, "error", err)
		}
		return ""
	}
	return url
}

// GetPhoto отдает фото. Недоступное или пропавшее производное качество заменяется Original.
func (uc *photoUseCase) GetPhoto(ctx context.Context, in GetPhotoInput) (*PhotoContent, error) {
	const op = "get_photo"

	photo, err := uc.Photos.GetPhotoByID(ctx, in.ID)
	if err != nil {
		return nil, domain.Unavailable(op, "metadata store", err)
	}
	if photo == nil {
		return nil, domain.NotFound(op, fmt.Sprintf("photo %s not found", in.ID))
	}

	requested := in.Quality
	if requested == "" {
		requested = domain.QualityOriginal
	}

	served := requested
	if !requested.IsOriginal() {
		if rec, ok := photo.Derivative(requested); !ok || !rec.Available {
			served = domain.QualityOriginal
		}
	}

	content := &PhotoContent{Quality: served}

	if in.URLMode && in.Format == "" {
		url, err := uc.Objects.URL(ctx, domain.ObjectKey(photo.ID, served))
		if err == nil {
			content.URL = url
			uc.finishFallback(content, photo.ID, requested)
			return content, nil
		}
		if !errors.Is(err, ports.ErrURLUnsupported) {
			uc.log.Warn("url mode failed, serving bytes", "photo_id", photo.ID, "error", err)
		}
	}

	data, err := uc.Objects.GetBytes(ctx, domain.ObjectKey(photo.ID, served))
	if err != nil && errors.Is(err, ports.ErrObjectNotFound) && !served.IsOriginal() {
		uc.log.Warn("derivative object missing, serving original", "photo_id", photo.ID, "quality", served)
		served = domain.QualityOriginal
		content.Quality = served
		data, err = uc.Objects.GetBytes(ctx, domain.ObjectKey(photo.ID, served))
	}
	if err != nil {
		if errors.Is(err, ports.ErrObjectNotFound) {
			return nil, domain.NotFound(op, fmt.Sprintf("original of photo %s is missing", photo.ID))
		}
		return nil, domain.Unavailable(op, "storage engine", err)
	}

	content.Data = data
	if served.IsOriginal() {
		content.ContentType = photo.MimeType
	} else {
		content.ContentType = uc.Transcoder.DeliveryFormat().ContentType()
	}

	if in.Format != "" && in.Format.ContentType() != content.ContentType {
		converted, err := uc.Transcoder.Convert(data, in.Format, served.IsOriginal())
		if err != nil {
			if errors.Is(err, media.ErrDecode) {
				return nil, domain.BadInput(op, "stored object cannot be converted", err)
			}
			return nil, domain.Unavailable(op, "transcoder", err)
		}
		content.Data = converted
		content.ContentType = in.Format.ContentType()
	}

	uc.finishFallback(content, photo.ID, requested)
	return content, nil
}

func (uc *photoUseCase) finishFallback(content *PhotoContent, photoID string, requested domain.Quality) {
	if content.Quality == requested {
		return
	}
	content.Fallback = true
	metrics.QualityFallbacksTotal.WithLabelValues(requested.String()).Inc()
	uc.log.Debug("quality fallback to original", "photo_id", photoID, "quality", requested)
}

// ReportBroken проверяет доступность качества и планирует восстановление
func (uc *photoUseCase) ReportBroken(ctx context.Context, id string, quality domain.Quality) (bool, error) {
	const op = "report_broken"

	if err := uc.checkRepairable(op, quality); err != nil {
		return false, err
	}

	photo, err := uc.Photos.GetPhotoByID(ctx, id)
	if err != nil {
		return false, domain.Unavailable(op, "metadata store", err)
	}
	if photo == nil {
		return false, domain.NotFound(op, fmt.Sprintf("photo %s not found", id))
	}

	rec, ok := photo.Derivative(quality)
	if ok && rec.Available {
		if uc.reachable(ctx, rec) {
			uc.log.Info("reported quality is reachable, nothing to repair", "photo_id", id, "quality", quality)
			return false, nil
		}
		if err := uc.Photos.InvalidateDerivative(ctx, id, quality); err != nil {
			return false, domain.Unavailable(op, "metadata store", err)
		}
	}

	if err := uc.dispatchRepair(ctx, id, quality); err != nil {
		return false, domain.Unavailable(op, "repair dispatcher", err)
	}
	return true, nil
}

func (uc *photoUseCase) checkRepairable(op string, quality domain.Quality) error {
	if quality.IsOriginal() {
		return domain.BadInput(op, "Original quality cannot be fixed", nil)
	}
	if !uc.opts.Tiers.Contains(quality) {
		return domain.BadInput(op, fmt.Sprintf("unknown quality %q", quality), nil)
	}
	return nil
}

// reachable проверяет качество по URL, если он есть, иначе через хранилище
func (uc *photoUseCase) reachable(ctx context.Context, rec domain.DerivativeRecord) bool {
	if rec.URL != "" && uc.Prober != nil {
		return uc.Prober.Reachable(ctx, rec.URL)
	}
	exists, err := uc.Objects.Exists(ctx, domain.ObjectKey(rec.PhotoID, rec.Quality))
	if err != nil {
		uc.log.Warn("existence check failed", "photo_id", rec.PhotoID, "quality", rec.Quality, "error", err)
		return false
	}
	return exists
}

func (uc *photoUseCase) dispatchRepair(ctx context.Context, id string, quality domain.Quality) error {
	if uc.opts.RepairViaQueue && uc.RepairPublisher != nil {
		payload := payloads.PhotoRepairPayload{PhotoID: id, Quality: quality.String()}
		if err := uc.RepairPublisher.PublishPhotoRepairRequest(ctx, payload); err != nil {
			return err
		}
		metrics.RepairsScheduledTotal.WithLabelValues("queue").Inc()
		return nil
	}

	err := uc.Runner.Submit("repair:"+id+":"+quality.String(), func(ctx context.Context) error {
		return uc.RepairPhoto(ctx, id, quality)
	})
	if err != nil {
		return err
	}
	metrics.RepairsScheduledTotal.WithLabelValues("pool").Inc()
	return nil
}

// RepairPhoto пересоздает одно качество из Original
func (uc *photoUseCase) RepairPhoto(ctx context.Context, id string, quality domain.Quality) error {
	const op = "repair_photo"

	if err := uc.checkRepairable(op, quality); err != nil {
		return err
	}

	photo, err := uc.Photos.GetPhotoByID(ctx, id)
	if err != nil {
		return domain.Unavailable(op, "metadata store", err)
	}
	if photo == nil {
		return domain.NotFound(op, fmt.Sprintf("photo %s not found", id))
	}

	data, err := uc.Objects.GetBytes(ctx, domain.ObjectKey(id, domain.QualityOriginal))
	if err != nil {
		if errors.Is(err, ports.ErrObjectNotFound) {
			return domain.NotFound(op, fmt.Sprintf("original of photo %s is missing", id))
		}
		return domain.Unavailable(op, "storage engine", err)
	}

	img, err := uc.Transcoder.Decode(data)
	if err != nil {
		return domain.BadInput(op, "stored original cannot be decoded", err)
	}

	if err := uc.generate(ctx, id, quality, img); err != nil {
		return domain.Unavailable(op, "derivative generation", err)
	}
	return nil
}

// DeletePhoto удаляет метаданные, затем пытается удалить объекты всех качеств.
// Ошибки удаления отдельных объектов только логируются.
func (uc *photoUseCase) DeletePhoto(ctx context.Context, id string) error {
	const op = "delete_photo"

	photo, err := uc.Photos.GetPhotoByID(ctx, id)
	if err != nil {
		return domain.Unavailable(op, "metadata store", err)
	}
	if photo == nil {
		return domain.NotFound(op, fmt.Sprintf("photo %s not found", id))
	}

	if err := uc.Photos.DeletePhoto(ctx, id); err != nil {
		return domain.Unavailable(op, "metadata store", err)
	}

	var failed int
	for _, q := range uc.opts.Tiers.All() {
		key := domain.ObjectKey(id, q)
		if err := uc.Objects.Delete(ctx, key); err != nil {
			failed++
			uc.log.Error("failed to delete object", "photo_id", id, "quality", q, "error", err)
		}
	}

	uc.log.Info("photo deleted", "photo_id", id, "failed_objects", failed)
	return nil
}

// normalizeBatch убирает пустые и повторяющиеся id, сохраняя порядок
func normalizeBatch(op string, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > maxBatchSize {
		return nil, domain.BadInput(op, fmt.Sprintf("batch exceeds %d ids", maxBatchSize), nil)
	}
	return out, nil
}

func batchFailure(id string, err error) BatchOutcome {
	kind := domain.KindOf(err)
	if kind == "" {
		kind = domain.KindUpstreamUnavailable
	}
	return BatchOutcome{ID: id, Kind: kind, Error: err.Error()}
}

// GetPhotos возвращает метаданные нескольких фото, результат по каждому id отдельно
func (uc *photoUseCase) GetPhotos(ctx context.Context, ids []string) ([]BatchOutcome, error) {
	ids, err := normalizeBatch("get_photos", ids)
	if err != nil {
		return nil, err
	}

	outcomes := make([]BatchOutcome, 0, len(ids))
	for _, id := range ids {
		photo, err := uc.GetPhotoMetadata(ctx, id)
		if err != nil {
			outcomes = append(outcomes, batchFailure(id, err))
			continue
		}
		outcomes = append(outcomes, BatchOutcome{ID: id, Photo: photo})
	}
	return outcomes, nil
}

// DeletePhotos удаляет несколько фото по одному, ошибка одного id не останавливает остальные
func (uc *photoUseCase) DeletePhotos(ctx context.Context, ids []string) ([]BatchOutcome, error) {
	ids, err := normalizeBatch("delete_photos", ids)
	if err != nil {
		return nil, err
	}

	outcomes := make([]BatchOutcome, 0, len(ids))
	var failed int
	for _, id := range ids {
		if err := uc.DeletePhoto(ctx, id); err != nil {
			failed++
			outcomes = append(outcomes, batchFailure(id, err))
			continue
		}
		outcomes = append(outcomes, BatchOutcome{ID: id, Deleted: true})
	}

	uc.log.Info("batch delete finished", "requested", len(ids), "failed", failed)
	return outcomes, nil
}

func (uc *photoUseCase) GetPhotoMetadata(ctx context.Context, id string) (*domain.Photo, error) {
	const op = "get_photo_metadata"

	photo, err := uc.Photos.GetPhotoByID(ctx, id)
	if err != nil {
		return nil, domain.Unavailable(op, "metadata store", err)
	}
	if photo == nil {
		return nil, domain.NotFound(op, fmt.Sprintf("photo %s not found", id))
	}
	return photo, nil
}

func (uc *photoUseCase) ListPhotos(ctx context.Context, albumID string, page, perPage int) ([]domain.Photo, error) {
	const op = "list_photos"

	// Устанавливаем значения по умолчанию
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	photos, err := uc.Photos.ListPhotos(ctx, albumID, page, perPage)
	if err != nil {
		return nil, domain.Unavailable(op, "metadata store", err)
	}
	return photos, nil
}
