package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/domain"
	"github.com/GoArmGo/PhotoApp/internal/media"
	"github.com/GoArmGo/PhotoApp/internal/usecase"
)

// fakeUseCase позволяет задавать поведение каждой операции отдельно
type fakeUseCase struct {
	create   func(usecase.CreatePhotoInput) (*usecase.CreatePhotoResult, error)
	get      func(usecase.GetPhotoInput) (*usecase.PhotoContent, error)
	del      func(id string) error
	report   func(id string, q domain.Quality) (bool, error)
	metadata func(id string) (*domain.Photo, error)
	list     func(albumID string, page, perPage int) ([]domain.Photo, error)
	getMany  func(ids []string) ([]usecase.BatchOutcome, error)
	delMany  func(ids []string) ([]usecase.BatchOutcome, error)
}

func (f *fakeUseCase) CreatePhoto(_ context.Context, in usecase.CreatePhotoInput) (*usecase.CreatePhotoResult, error) {
	return f.create(in)
}

func (f *fakeUseCase) GetPhoto(_ context.Context, in usecase.GetPhotoInput) (*usecase.PhotoContent, error) {
	return f.get(in)
}

func (f *fakeUseCase) DeletePhoto(_ context.Context, id string) error { return f.del(id) }

func (f *fakeUseCase) ReportBroken(_ context.Context, id string, q domain.Quality) (bool, error) {
	return f.report(id, q)
}

func (f *fakeUseCase) RepairPhoto(context.Context, string, domain.Quality) error {
	return errors.New("not used over http")
}

func (f *fakeUseCase) GetPhotoMetadata(_ context.Context, id string) (*domain.Photo, error) {
	return f.metadata(id)
}

func (f *fakeUseCase) ListPhotos(_ context.Context, albumID string, page, perPage int) ([]domain.Photo, error) {
	return f.list(albumID, page, perPage)
}

func (f *fakeUseCase) GetPhotos(_ context.Context, ids []string) ([]usecase.BatchOutcome, error) {
	return f.getMany(ids)
}

func (f *fakeUseCase) DeletePhotos(_ context.Context, ids []string) ([]usecase.BatchOutcome, error) {
	return f.delMany(ids)
}

type fakeAlbums struct {
	created []string
}

func (a *fakeAlbums) AlbumExists(context.Context, string) (bool, error) { return true, nil }

func (a *fakeAlbums) CreateAlbum(_ context.Context, name string) (*domain.Album, error) {
	a.created = append(a.created, name)
	return &domain.Album{ID: "album-1", Name: name}, nil
}

func newTestRouter(uc *fakeUseCase, tokens ...string) (http.Handler, *fakeAlbums) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	albums := &fakeAlbums{}
	h := NewPhotoHandler(uc, albums, 1<<20, log)
	return NewRouter(h, RouterConfig{RequestTimeout: 5 * time.Second, ServiceTokens: tokens, Logger: log}), albums
}

func do(t *testing.T, h http.Handler, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestErrorKindMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		retryAfter string
	}{
		{name: "bad input", err: domain.BadInput("op", "bad", nil), wantStatus: http.StatusBadRequest},
		{name: "not found", err: domain.NotFound("op", "missing"), wantStatus: http.StatusNotFound},
		{name: "forbidden", err: domain.Forbidden("op"), wantStatus: http.StatusForbidden},
		{name: "unavailable", err: domain.Unavailable("op", "store", errors.New("down")), wantStatus: http.StatusServiceUnavailable},
		{name: "rate limited rounds up", err: domain.RateLimited("op", 1200*time.Millisecond), wantStatus: http.StatusTooManyRequests, retryAfter: "2"},
		{name: "rate limited at least one second", err: domain.RateLimited("op", 10*time.Millisecond), wantStatus: http.StatusTooManyRequests, retryAfter: "1"},
		{name: "untyped", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(&fakeUseCase{
				create: func(usecase.CreatePhotoInput) (*usecase.CreatePhotoResult, error) { return nil, tt.err },
			})
			rec := do(t, router, http.MethodPost, "/api/v2/photos", []byte("x"), nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
		})
	}
}

func TestCreatePhoto(t *testing.T) {
	var got usecase.CreatePhotoInput
	created := true
	router, _ := newTestRouter(&fakeUseCase{
		create: func(in usecase.CreatePhotoInput) (*usecase.CreatePhotoResult, error) {
			got = in
			return &usecase.CreatePhotoResult{Photo: &domain.Photo{ID: "abc", Width: 10}, Created: created}, nil
		},
	})

	rec := do(t, router, http.MethodPost, "/api/v2/photos?album_id=al", []byte("image-bytes"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if string(got.Data) != "image-bytes" || got.AlbumID != "al" {
		t.Errorf("input = %+v", got)
	}
	var photo domain.Photo
	if err := json.Unmarshal(rec.Body.Bytes(), &photo); err != nil || photo.ID != "abc" {
		t.Errorf("body = %s (%v)", rec.Body.String(), err)
	}

	created = false
	rec = do(t, router, http.MethodPost, "/api/v2/photos", []byte("image-bytes"), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("duplicate upload status = %d, want 200", rec.Code)
	}
}

func TestServiceAuth(t *testing.T) {
	uc := &fakeUseCase{
		del:  func(string) error { return nil },
		list: func(string, int, int) ([]domain.Photo, error) { return nil, nil },
	}
	router, _ := newTestRouter(uc, "secret", "other")

	tests := []struct {
		name   string
		method string
		target string
		header map[string]string
		want   int
	}{
		{name: "no header", method: http.MethodDelete, target: "/api/v2/photos/p1", want: http.StatusForbidden},
		{name: "wrong scheme", method: http.MethodDelete, target: "/api/v2/photos/p1", header: map[string]string{"Authorization": "Bearer secret"}, want: http.StatusForbidden},
		{name: "wrong token", method: http.MethodDelete, target: "/api/v2/photos/p1", header: map[string]string{"Authorization": "Service nope"}, want: http.StatusForbidden},
		{name: "valid token", method: http.MethodDelete, target: "/api/v2/photos/p1", header: map[string]string{"Authorization": "Service other"}, want: http.StatusNoContent},
		{name: "reads are public", method: http.MethodGet, target: "/api/v2/photos", want: http.StatusOK},
		{name: "batch delete needs token", method: http.MethodPost, target: "/api/v2/photos:batchDelete", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.target, nil, tt.header)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGetPhoto(t *testing.T) {
	var got usecase.GetPhotoInput
	router, _ := newTestRouter(&fakeUseCase{
		get: func(in usecase.GetPhotoInput) (*usecase.PhotoContent, error) {
			got = in
			if in.URLMode {
				return &usecase.PhotoContent{URL: "http://cdn/p1_W400", Quality: "W400"}, nil
			}
			return &usecase.PhotoContent{Data: []byte("jpeg"), ContentType: media.MimeJPEG, Quality: domain.QualityOriginal, Fallback: true}, nil
		},
	})

	rec := do(t, router, http.MethodGet, "/api/v2/photos/p1?quality=w400&format=png", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.ID != "p1" || got.Quality != "W400" || got.Format != media.FormatPNG || got.URLMode {
		t.Errorf("input = %+v", got)
	}
	if rec.Header().Get("Content-Type") != media.MimeJPEG || rec.Body.String() != "jpeg" {
		t.Errorf("got %s %q", rec.Header().Get("Content-Type"), rec.Body.String())
	}
	if rec.Header().Get("X-Photo-Quality") != "Original" || rec.Header().Get("X-Photo-Fallback") != "true" {
		t.Errorf("quality headers = %v", rec.Header())
	}

	rec = do(t, router, http.MethodGet, "/api/v2/photos/p1?quality=W400&url=true", nil, nil)
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["url"] != "http://cdn/p1_W400" || body["quality"] != "W400" {
		t.Errorf("body = %v", body)
	}

	for _, target := range []string{"/api/v2/photos/p1?quality=huge", "/api/v2/photos/p1?format=gif"} {
		if rec := do(t, router, http.MethodGet, target, nil, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestReportBroken(t *testing.T) {
	router, _ := newTestRouter(&fakeUseCase{
		report: func(id string, q domain.Quality) (bool, error) {
			if q.IsOriginal() {
				return false, domain.BadInput("report_broken", "Original quality cannot be fixed", nil)
			}
			return id == "p1", nil
		},
	})

	rec := do(t, router, http.MethodPost, "/api/v2/photos/p1/report-broken?quality=W400", nil, nil)
	if rec.Code != http.StatusAccepted || !strings.Contains(rec.Body.String(), `"repair_scheduled":true`) {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/v2/photos/p1/report-broken?quality=Original", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Original status = %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/v2/photos/p1/report-broken", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing quality status = %d", rec.Code)
	}
}

func TestMetadataAndList(t *testing.T) {
	var gotPage, gotPerPage int
	router, _ := newTestRouter(&fakeUseCase{
		metadata: func(id string) (*domain.Photo, error) {
			if id != "p1" {
				return nil, domain.NotFound("get_photo_metadata", "photo not found")
			}
			return &domain.Photo{ID: "p1", Exif: []domain.MetadataField{{Key: "Make", Value: "Canon"}}}, nil
		},
		list: func(_ string, page, perPage int) ([]domain.Photo, error) {
			gotPage, gotPerPage = page, perPage
			return nil, nil
		},
	})

	rec := do(t, router, http.MethodGet, "/api/v2/photos/p1/metadata", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"key":"Make"`) {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodGet, "/api/v2/photos/zzz/metadata", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown status = %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/v2/photos?page=3&per_page=5", nil, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
	if gotPage != 3 || gotPerPage != 5 {
		t.Errorf("page=%d per_page=%d", gotPage, gotPerPage)
	}
}

func TestBatchGetPhotos(t *testing.T) {
	var got []string
	router, _ := newTestRouter(&fakeUseCase{
		getMany: func(ids []string) ([]usecase.BatchOutcome, error) {
			got = ids
			return []usecase.BatchOutcome{
				{ID: "p1", Photo: &domain.Photo{ID: "p1"}},
				{ID: "p2", Kind: domain.KindNotFound, Error: "photo p2 not found"},
			}, nil
		},
	}, "secret")

	rec := do(t, router, http.MethodPost, "/api/v2/photos:batchGet", []byte(`{"ids":["p1","p2"]}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	if len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Errorf("ids = %v", got)
	}
	var body struct {
		Results []usecase.BatchOutcome `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body = %s (%v)", rec.Body.String(), err)
	}
	if len(body.Results) != 2 || body.Results[0].Photo == nil || body.Results[1].Kind != domain.KindNotFound {
		t.Errorf("results = %+v", body.Results)
	}

	if rec := do(t, router, http.MethodPost, "/api/v2/photos:batchGet", []byte(`{"ids":`), nil); rec.Code != http.StatusBadRequest {
		t.Errorf("broken JSON status = %d", rec.Code)
	}
}

func TestBatchDeletePhotos(t *testing.T) {
	router, _ := newTestRouter(&fakeUseCase{
		delMany: func(ids []string) ([]usecase.BatchOutcome, error) {
			if len(ids) > 2 {
				return nil, domain.BadInput("delete_photos", "batch too large", nil)
			}
			out := make([]usecase.BatchOutcome, 0, len(ids))
			for _, id := range ids {
				out = append(out, usecase.BatchOutcome{ID: id, Deleted: true})
			}
			return out, nil
		},
	}, "secret")
	auth := map[string]string{"Authorization": "Service secret"}

	rec := do(t, router, http.MethodPost, "/api/v2/photos:batchDelete", []byte(`{"ids":["p1"]}`), auth)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"deleted":true`) {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/v2/photos:batchDelete", []byte(`{"ids":["a","b","c"]}`), auth)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized batch status = %d", rec.Code)
	}
}

func TestCreateAlbum(t *testing.T) {
	router, albums := newTestRouter(&fakeUseCase{})

	rec := do(t, router, http.MethodPost, "/api/v2/albums", []byte(`{"name":" Holiday "}`), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	if len(albums.created) != 1 || albums.created[0] != "Holiday" {
		t.Errorf("created = %v", albums.created)
	}

	if rec := do(t, router, http.MethodPost, "/api/v2/albums", []byte(`{"name":""}`), nil); rec.Code != http.StatusBadRequest {
		t.Errorf("empty name status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(&fakeUseCase{})
	rec := do(t, router, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output misses default collectors")
	}
}
