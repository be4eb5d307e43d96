package media_test

import (
	"errors"
	"testing"

	"github.com/GoArmGo/PhotoApp/internal/media"
	"github.com/GoArmGo/PhotoApp/internal/media/mediatest"
)

func TestFingerprint(t *testing.T) {
	const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	if got := media.Fingerprint(nil); got != emptySHA256 {
		t.Errorf("Fingerprint(nil) = %s, want %s", got, emptySHA256)
	}

	data := mediatest.JPEG(t, 16, 16)
	first := media.Fingerprint(data)
	second := media.Fingerprint(append([]byte(nil), data...))
	if first != second {
		t.Errorf("fingerprint is not deterministic: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(first))
	}

	changed := append([]byte(nil), data...)
	changed[len(changed)-3] ^= 0xFF
	if media.Fingerprint(changed) == first {
		t.Error("different bytes produced the same fingerprint")
	}
}

func TestExtractMetadata(t *testing.T) {
	data := mediatest.ExifJPEG(t, 30, 20, 6, "2023:05:01 10:00:00")

	meta, err := media.ExtractMetadata(data)
	if err != nil {
		t.Fatalf("ExtractMetadata() error = %v", err)
	}
	if meta.Orientation != 6 {
		t.Errorf("Orientation = %d, want 6", meta.Orientation)
	}
	if meta.CapturedAt == nil {
		t.Fatal("CapturedAt is nil")
	}
	if got := meta.CapturedAt.Unix(); got != 1682935200 {
		t.Errorf("CapturedAt = %d, want 1682935200", got)
	}

	var found bool
	for _, f := range meta.Fields {
		if f.Key == "Orientation" {
			t.Errorf("field %q is not in the allow-list", f.Key)
		}
		if f.Key == "DateTimeOriginal" {
			found = true
			if f.Value != "2023:05:01 10:00:00" {
				t.Errorf("DateTimeOriginal = %q", f.Value)
			}
		}
	}
	if !found {
		t.Errorf("DateTimeOriginal not extracted, fields = %+v", meta.Fields)
	}
}

func TestExtractMetadataWithoutExif(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "plain jpeg", data: mediatest.JPEG(t, 8, 8)},
		{name: "png", data: mediatest.PNG(t, 8, 8)},
		{name: "garbage", data: []byte("definitely not an image")},
		{name: "empty", data: nil},
		{name: "truncated exif", data: mediatest.ExifJPEG(t, 8, 8, 1, "2023:05:01 10:00:00")[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := media.ExtractMetadata(tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if meta.CapturedAt != nil {
				t.Errorf("CapturedAt = %v, want nil", meta.CapturedAt)
			}
		})
	}
}

func TestExtractMetadataNoExifSentinel(t *testing.T) {
	_, err := media.ExtractMetadata(mediatest.PNG(t, 4, 4))
	if !errors.Is(err, media.ErrNoMetadata) {
		t.Errorf("error = %v, want ErrNoMetadata", err)
	}
}
