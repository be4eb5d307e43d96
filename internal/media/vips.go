package media

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitMutex sync.Mutex
	vipsStarted   bool
	vipsAvailable bool
)

// InitVips запускает libvips. Вызывается один раз при старте;
// повторные вызовы ничего не делают.
func InitVips(log *slog.Logger) (err error) {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsStarted {
		if !vipsAvailable {
			return fmt.Errorf("libvips not available")
		}
		return nil
	}
	vipsStarted = true

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			log.Error("libvips", "domain", domain, "message", msg)
		case vips.LogLevelWarning:
			log.Warn("libvips", "domain", domain, "message", msg)
		default:
			log.Debug("libvips", "domain", domain, "message", msg)
		}
	}, vips.LogLevelWarning)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvips startup failed: %v", r)
		}
	}()

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsAvailable = true
	log.Info("libvips initialized", "version", vips.Version)
	return nil
}

// ShutdownVips освобождает ресурсы libvips
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
	}
}

// IsVipsAvailable сообщает, запущен ли libvips
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// encodeWebP кодирует изображение в WebP через libvips.
// Промежуточный PNG передается в vips без потерь.
func encodeWebP(img image.Image, quality int) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("%w: libvips not available for webp", ErrEncode)
	}

	var buf bytes.Buffer
	if err := (&png.Encoder{CompressionLevel: png.NoCompression}).Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: intermediate png: %v", ErrEncode, err)
	}

	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: vips load: %v", ErrEncode, err)
	}
	defer ref.Close()

	params := vips.NewWebpExportParams()
	params.Quality = quality
	params.StripMetadata = true

	out, _, err := ref.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("%w: vips webp export: %v", ErrEncode, err)
	}
	return out, nil
}
