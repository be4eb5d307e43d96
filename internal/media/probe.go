package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // регистрация декодеров для image.DecodeConfig
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MimeJPEG        = "image/jpeg"
	MimePNG         = "image/png"
	MimeTIFF        = "image/tiff"
	MimeWebP        = "image/webp"
	MimeOctetStream = "application/octet-stream"
)

var listedMimeTypes = []string{MimeJPEG, MimePNG, MimeTIFF, MimeWebP}

// ErrMalformedHeader возвращается, если контейнер распознан, но его заголовок не читается
var ErrMalformedHeader = errors.New("malformed image header")

// ProbeResult - тип контейнера и размеры из заголовков
type ProbeResult struct {
	MimeType string
	Width    int
	Height   int
}

// Oriented возвращает размеры с учетом поворота из EXIF
func (r ProbeResult) Oriented(orientation int) ProbeResult {
	if SwapsDimensions(orientation) {
		r.Width, r.Height = r.Height, r.Width
	}
	return r
}

// Probe определяет тип и размеры изображения только по заголовкам, без полного декодирования.
// Неизвестные контейнеры не считаются ошибкой.
func Probe(data []byte) (ProbeResult, error) {
	detected := mimetype.Detect(data)

	var mime string
	for _, listed := range listedMimeTypes {
		if detected.Is(listed) {
			mime = listed
			break
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if mime == "" {
		res := ProbeResult{MimeType: MimeOctetStream}
		if err == nil {
			res.Width, res.Height = cfg.Width, cfg.Height
		}
		return res, nil
	}
	if err != nil {
		return ProbeResult{MimeType: mime}, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, mime, err)
	}
	return ProbeResult{MimeType: mime, Width: cfg.Width, Height: cfg.Height}, nil
}
