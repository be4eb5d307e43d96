package media

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ExifDateLayout - формат дат в EXIF
const ExifDateLayout = "2006:01:02 15:04:05"

// AllowedFields - поля EXIF, которые сохраняются для фото, в порядке сохранения.
var AllowedFields = []string{
	"Make", "Model", "XResolution", "YResolution", "ResolutionUnit",
	"Software", "ExifVersion", "FocalLengthIn35mmFilm", "ImageDescription", "DateTime",
	"Copyright", "Compression", "ISOSpeedRatings", "DateTimeOriginal", "DateTimeDigitized",
	"ExposureTime", "FNumber", "ExposureProgram", "ShutterSpeedValue", "ApertureValue",
	"MaxApertureValue", "MeteringMode", "LightSource", "Flash", "FocalLength",
	"SensingMethod", "SceneType", "ExposureMode", "WhiteBalance", "DigitalZoomRatio",
	"SceneCaptureType", "Sharpness", "GPSLatitudeRef", "GPSLatitude", "GPSLongitudeRef",
	"GPSLongitude", "GPSAltitudeRef", "GPSAltitude", "GPSTimeStamp", "GPSDateStamp",
}

var captureDateFields = []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime}

// ErrNoMetadata возвращается, когда в файле нет EXIF-блока
var ErrNoMetadata = errors.New("no exif metadata")

// Field - одно извлеченное поле EXIF
type Field struct {
	Key   string
	Value string
}

// Metadata - результат разбора EXIF. Может быть заполнен частично
// даже при ненулевой ошибке.
type Metadata struct {
	Fields      []Field
	CapturedAt  *time.Time
	Orientation int
}

// ExtractMetadata разбирает EXIF до декодирования изображения.
// Ошибки и паники парсера превращаются в возвращаемую ошибку.
func ExtractMetadata(data []byte) (meta Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("exif parser panic: %v", r)
		}
	}()

	x, decodeErr := exif.Decode(bytes.NewReader(data))
	if x == nil {
		if decodeErr == nil || exif.IsCriticalError(decodeErr) {
			return meta, fmt.Errorf("%w: %v", ErrNoMetadata, decodeErr)
		}
		return meta, fmt.Errorf("ошибка разбора exif: %w", decodeErr)
	}

	for _, name := range AllowedFields {
		tag, getErr := x.Get(exif.FieldName(name))
		if getErr != nil || tag == nil {
			continue
		}
		value, ok := tagValue(tag)
		if !ok {
			continue
		}
		meta.Fields = append(meta.Fields, Field{Key: name, Value: value})
	}

	meta.CapturedAt = captureTime(x)

	if tag, getErr := x.Get(exif.Orientation); getErr == nil && tag != nil {
		if o, intErr := tag.Int(0); intErr == nil && o >= 1 && o <= 8 {
			meta.Orientation = o
		}
	}

	if decodeErr != nil {
		return meta, fmt.Errorf("exif разобран частично: %w", decodeErr)
	}
	return meta, nil
}

func tagValue(tag *tiff.Tag) (string, bool) {
	if tag.Format() == tiff.StringVal {
		s, err := tag.StringVal()
		if err != nil {
			return "", false
		}
		return strings.TrimRight(strings.TrimSpace(s), "\x00"), true
	}
	return tag.String(), true
}

func captureTime(x *exif.Exif) *time.Time {
	for _, name := range captureDateFields {
		tag, err := x.Get(name)
		if err != nil || tag == nil {
			continue
		}
		raw, ok := tagValue(tag)
		if !ok {
			continue
		}
		t, err := time.Parse(ExifDateLayout, strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		t = t.UTC()
		return &t
	}
	return nil
}

// SwapsDimensions сообщает, поворачивает ли ориентация кадр на 90° или 270°.
func SwapsDimensions(orientation int) bool {
	return orientation >= 5
}
