package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// Format - формат кодирования при отдаче
type Format string

const (
	FormatWebP Format = "webp"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

var (
	// ErrDecode возвращается, если байты не являются поддерживаемым изображением
	ErrDecode = errors.New("image decode failed")
	// ErrEncode возвращается при ошибке кодирования
	ErrEncode = errors.New("image encode failed")
	// ErrUnknownFormat - неизвестный формат для кодирования
	ErrUnknownFormat = errors.New("unknown image format")
)

var decodableFormats = map[string]struct{}{
	"jpeg": {},
	"png":  {},
	"tiff": {},
	"webp": {},
}

// ParseFormat разбирает имя формата (png, jpeg/jpg, webp)
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webp":
		return FormatWebP, nil
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType возвращает MIME-тип формата
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return MimePNG
	case FormatJPEG:
		return MimeJPEG
	default:
		return MimeWebP
	}
}

// Derivative - закодированная производная версия
type Derivative struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Transcoder декодирует, масштабирует и кодирует изображения
// с фиксированными коэффициентами качества.
type Transcoder struct {
	delivery          Format
	originalQuality   int
	derivativeQuality int
}

func NewTranscoder(delivery Format, originalQuality, derivativeQuality int) *Transcoder {
	return &Transcoder{
		delivery:          delivery,
		originalQuality:   originalQuality,
		derivativeQuality: derivativeQuality,
	}
}

// DeliveryFormat возвращает канонический формат производных
func (t *Transcoder) DeliveryFormat() Format {
	return t.delivery
}

// Decode декодирует JPEG/PNG/TIFF/WebP с применением EXIF-ориентации.
func (t *Transcoder) Decode(data []byte) (image.Image, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if _, ok := decodableFormats[format]; !ok {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrDecode, format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	// imaging читает ориентацию только из JPEG, остальные форматы поворачиваем сами
	if format != "jpeg" {
		if meta, metaErr := ExtractMetadata(data); metaErr == nil && meta.Orientation > 1 {
			img = applyOrientation(img, meta.Orientation)
		}
	}
	return img, nil
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// Derive масштабирует изображение до ширины и кодирует в канонический формат
func (t *Transcoder) Derive(img image.Image, width int) (Derivative, error) {
	resized, err := ResizeToWidth(img, width)
	if err != nil {
		return Derivative{}, err
	}
	data, err := Encode(resized, t.delivery, t.derivativeQuality)
	if err != nil {
		return Derivative{}, err
	}
	b := resized.Bounds()
	return Derivative{
		Data:        data,
		ContentType: t.delivery.ContentType(),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

// Convert перекодирует уже сохраненный объект в запрошенный формат.
// original выбирает коэффициент качества оригинала.
func (t *Transcoder) Convert(data []byte, format Format, original bool) ([]byte, error) {
	img, err := t.Decode(data)
	if err != nil {
		return nil, err
	}
	quality := t.derivativeQuality
	if original {
		quality = t.originalQuality
	}
	return Encode(img, format, quality)
}

// ResizeToWidth масштабирует изображение до ширины с сохранением пропорций.
// Высота = round(H / (W / width)), не меньше 1.
func ResizeToWidth(img image.Image, width int) (*image.NRGBA, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid target width %d", width)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}

	ratio := float64(b.Dx()) / float64(width)
	height := int(math.Round(float64(b.Dy()) / ratio))
	if height < 1 {
		height = 1
	}

	filter := imaging.Lanczos
	if width > b.Dx() {
		filter = imaging.NearestNeighbor
	}
	return imaging.Resize(img, width, height, filter), nil
}

// Encode кодирует изображение в заданный формат
func Encode(img image.Image, format Format, quality int) ([]byte, error) {
	switch format {
	case FormatWebP:
		return encodeWebP(img, quality)
	case FormatPNG:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("%w: png: %v", ErrEncode, err)
		}
		return buf.Bytes(), nil
	case FormatJPEG:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("%w: jpeg: %v", ErrEncode, err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
