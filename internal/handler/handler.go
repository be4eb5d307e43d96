package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/GoArmGo/PhotoApp/internal/core/ports"
	"github.com/GoArmGo/PhotoApp/internal/domain"
	"github.com/GoArmGo/PhotoApp/internal/media"
	"github.com/GoArmGo/PhotoApp/internal/usecase"
	"github.com/go-chi/chi/v5"
)

// PhotoHandler - обработчик HTTP-запросов для работы с фотографиями.
type PhotoHandler struct {
	photoUseCase   usecase.PhotoUseCase
	albumStorage   ports.AlbumStorage
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewPhotoHandler создаёт новый экземпляр PhotoHandler.
func NewPhotoHandler(
	uc usecase.PhotoUseCase,
	albums ports.AlbumStorage,
	maxUploadBytes int64,
	logger *slog.Logger,
) *PhotoHandler {
	return &PhotoHandler{
		photoUseCase:   uc,
		albumStorage:   albums,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// respondWithJSON - отправляет JSON-ответ клиенту.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}, logger *slog.Logger) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		logger.Error("failed to marshal JSON response", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(response); err != nil {
		logger.Error("failed to write HTTP response", "error", err)
	}
}

// respondWithError - отправляет JSON-ответ с ошибкой.
func respondWithError(w http.ResponseWriter, code int, message string, logger *slog.Logger) {
	respondWithJSON(w, code, map[string]string{"error": message}, logger)
}

// respondWithUseCaseError переводит категорию ошибки конвейера в HTTP-статус.
func respondWithUseCaseError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		logger.Error("unexpected error", "error", err)
		respondWithError(w, http.StatusInternalServerError, "internal error", logger)
		return
	}

	switch derr.Kind {
	case domain.KindBadInput:
		respondWithError(w, http.StatusBadRequest, derr.Message, logger)
	case domain.KindNotFound:
		respondWithError(w, http.StatusNotFound, derr.Message, logger)
	case domain.KindForbidden:
		respondWithError(w, http.StatusForbidden, derr.Message, logger)
	case domain.KindRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(derr)))
		respondWithError(w, http.StatusTooManyRequests, derr.Message, logger)
	case domain.KindUpstreamUnavailable:
		logger.Error("upstream unavailable", "op", derr.Op, "error", err)
		respondWithError(w, http.StatusServiceUnavailable, derr.Message, logger)
	default:
		logger.Error("unexpected error kind", "kind", derr.Kind, "error", err)
		respondWithError(w, http.StatusInternalServerError, "internal error", logger)
	}
}

// retryAfterSeconds округляет задержку вверх до целых секунд, минимум 1
func retryAfterSeconds(e *domain.Error) int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// CreatePhoto - принимает байты фото в теле запроса.
func (h *PhotoHandler) CreatePhoto(w http.ResponseWriter, r *http.Request) {
	albumID := r.URL.Query().Get("album_id")

	// читаем на байт больше лимита, чтобы конвейер сам отклонил слишком большой файл
	data, err := io.ReadAll(io.LimitReader(r.Body, h.maxUploadBytes+1))
	if err != nil {
		h.logger.Warn("failed to read request body", "error", err)
		respondWithError(w, http.StatusBadRequest, "failed to read request body", h.logger)
		return
	}

	res, err := h.photoUseCase.CreatePhoto(r.Context(), usecase.CreatePhotoInput{Data: data, AlbumID: albumID})
	if err != nil {
		h.logger.Warn("failed to create photo", "album_id", albumID, "size", len(data), "error", err)
		respondWithUseCaseError(w, err, h.logger)
		return
	}

	code := http.StatusCreated
	if !res.Created {
		code = http.StatusOK
	}
	respondWithJSON(w, code, res.Photo, h.logger)
}

// ListPhotos - страница фото, новые первыми.
func (h *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	albumID := r.URL.Query().Get("album_id")

	photos, err := h.photoUseCase.ListPhotos(r.Context(), albumID, page, perPage)
	if err != nil {
		respondWithUseCaseError(w, err, h.logger)
		return
	}
	if photos == nil {
		photos = []domain.Photo{}
	}

	h.logger.Debug("photos listed", "album_id", albumID, "page", page, "count", len(photos))
	respondWithJSON(w, http.StatusOK, photos, h.logger)
}

// GetPhoto - отдает фото байтами или ссылкой.
func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	in := usecase.GetPhotoInput{ID: chi.URLParam(r, "id")}
	q := r.URL.Query()

	if raw := q.Get("quality"); raw != "" {
		quality, err := domain.ParseQuality(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error(), h.logger)
			return
		}
		in.Quality = quality
	}
	if raw := q.Get("format"); raw != "" {
		format, err := media.ParseFormat(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "unsupported format", h.logger)
			return
		}
		in.Format = format
	}
	in.URLMode, _ = strconv.ParseBool(q.Get("url"))

	content, err := h.photoUseCase.GetPhoto(r.Context(), in)
	if err != nil {
		respondWithUseCaseError(w, err, h.logger)
		return
	}

	w.Header().Set("X-Photo-Quality", content.Quality.String())
	if content.Fallback {
		w.Header().Set("X-Photo-Fallback", "true")
	}

	if content.URL != "" {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"url":     content.URL,
			"quality": content.Quality.String(),
		}, h.logger)
		return
	}

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content.Data); err != nil {
		h.logger.Error("failed to write photo bytes", "photo_id", in.ID, "error", err)
	}
}

// GetPhotoMetadata - метаданные фото, поля EXIF и записи качеств.
func (h *PhotoHandler) GetPhotoMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	photo, err := h.photoUseCase.GetPhotoMetadata(r.Context(), id)
	if err != nil {
		respondWithUseCaseError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, photo, h.logger)
}

// DeletePhoto - удаляет фото и все его объекты.
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.photoUseCase.DeletePhoto(r.Context(), id); err != nil {
		respondWithUseCaseError(w, err, h.logger)
		return
	}
	h.logger.Info("photo deleted", "photo_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type batchRequest struct {
	IDs []string `json:"ids"`
}

type batchResponse struct {
	Results []usecase.BatchOutcome `json:"results"`
}

func (h *PhotoHandler) decodeBatch(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req batchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body", h.logger)
		return nil, false
	}
	return req.IDs, true
}

// BatchGetPhotos - метаданные нескольких фото, по результату на каждый id.
func (h *PhotoHandler) BatchGetPhotos(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	results, err := h.photoUseCase.GetPhotos(r.Context(), ids)
	if err != nil {
		respondWithUseCaseError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, batchResponse{Results: results}, h.logger)
}

func (h *PhotoHandler) BatchDeletePhotos(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	results, err := h.photoUseCase.DeletePhotos(r.Context(), ids)
	if err != nil {
		respondWithUseCaseError(w, err, h.logger)
		return
	}
	h.logger.Info("batch delete handled", "requested", len(ids), "results", len(results))
	respondWithJSON(w, http.StatusOK, batchResponse{Results: results}, h.logger)
}

// ReportBroken - сообщение о недоступном качестве.
func (h *PhotoHandler) ReportBroken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	quality, err := domain.ParseQuality(r.URL.Query().Get("quality"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	scheduled, err := h.photoUseCase.ReportBroken(r.Context(), id, quality)
	if err != nil {
		respondWithUseCaseError(w, err, h.logger)
		return
	}

	h.logger.Info("broken quality reported", "photo_id", id, "quality", quality, "repair_scheduled", scheduled)
	respondWithJSON(w, http.StatusAccepted, map[string]bool{"repair_scheduled": scheduled}, h.logger)
}

type createAlbumRequest struct {
	Name string `json:"name"`
}

// CreateAlbum - заводит альбом, к которому можно привязывать фото.
func (h *PhotoHandler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req createAlbumRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body", h.logger)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "album name is required", h.logger)
		return
	}

	album, err := h.albumStorage.CreateAlbum(r.Context(), req.Name)
	if err != nil {
		h.logger.Error("failed to create album", "name", req.Name, "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "failed to create album", h.logger)
		return
	}
	respondWithJSON(w, http.StatusCreated, album, h.logger)
}
