// Package mediatest собирает тестовые изображения в памяти.
package mediatest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// Gradient возвращает RGBA-изображение заданного размера
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// ExifJPEG возвращает JPEG с APP1-блоком EXIF, содержащим Orientation
// и DateTimeOriginal (формат "2006:01:02 15:04:05").
func ExifJPEG(t testing.TB, w, h, orientation int, dateTimeOriginal string) []byte {
	t.Helper()
	if len(dateTimeOriginal) != 19 {
		t.Fatalf("dateTimeOriginal must be 19 chars, got %q", dateTimeOriginal)
	}
	plain := JPEG(t, w, h)

	tiff := exifTIFF(uint16(orientation), dateTimeOriginal)

	var app1 bytes.Buffer
	app1.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&app1, binary.BigEndian, uint16(2+6+len(tiff)))
	app1.WriteString("Exif\x00\x00")
	app1.Write(tiff)

	out := make([]byte, 0, len(plain)+app1.Len())
	out = append(out, plain[:2]...)
	out = append(out, app1.Bytes()...)
	out = append(out, plain[2:]...)
	return out
}

// exifTIFF строит big-endian TIFF: IFD0 (Orientation, ExifIFDPointer)
// и Exif IFD с одним тегом DateTimeOriginal.
func exifTIFF(orientation uint16, date string) []byte {
	const (
		ifd0Offset  = 8
		exifOffset  = 38
		valueOffset = 56
	)
	var b bytes.Buffer
	be := binary.BigEndian

	b.WriteString("MM")
	_ = binary.Write(&b, be, uint16(42))
	_ = binary.Write(&b, be, uint32(ifd0Offset))

	// IFD0
	_ = binary.Write(&b, be, uint16(2))
	_ = binary.Write(&b, be, uint16(0x0112)) // Orientation
	_ = binary.Write(&b, be, uint16(3))      // SHORT
	_ = binary.Write(&b, be, uint32(1))
	_ = binary.Write(&b, be, orientation)
	_ = binary.Write(&b, be, uint16(0))
	_ = binary.Write(&b, be, uint16(0x8769)) // ExifIFDPointer
	_ = binary.Write(&b, be, uint16(4))      // LONG
	_ = binary.Write(&b, be, uint32(1))
	_ = binary.Write(&b, be, uint32(exifOffset))
	_ = binary.Write(&b, be, uint32(0))

	// Exif IFD
	_ = binary.Write(&b, be, uint16(1))
	_ = binary.Write(&b, be, uint16(0x9003)) // DateTimeOriginal
	_ = binary.Write(&b, be, uint16(2))      // ASCII
	_ = binary.Write(&b, be, uint32(len(date)+1))
	_ = binary.Write(&b, be, uint32(valueOffset))
	_ = binary.Write(&b, be, uint32(0))

	b.WriteString(date)
	b.WriteByte(0)
	return b.Bytes()
}

// OrientedTIFF возвращает несжатый little-endian TIFF в оттенках серого
// с тегом Orientation в IFD0.
func OrientedTIFF(t testing.TB, w, h, orientation int) []byte {
	t.Helper()
	if w <= 0 || h <= 0 || w > 0xFFFF || h > 0xFFFF {
		t.Fatalf("invalid tiff size %dx%d", w, h)
	}
	const (
		entries    = 10
		dataOffset = 8 + 2 + entries*12 + 4
	)
	le := binary.LittleEndian
	var b bytes.Buffer

	b.WriteString("II")
	_ = binary.Write(&b, le, uint16(42))
	_ = binary.Write(&b, le, uint32(8))

	short := func(tag, value uint16) {
		_ = binary.Write(&b, le, tag)
		_ = binary.Write(&b, le, uint16(3))
		_ = binary.Write(&b, le, uint32(1))
		_ = binary.Write(&b, le, value)
		_ = binary.Write(&b, le, uint16(0))
	}
	long := func(tag uint16, value uint32) {
		_ = binary.Write(&b, le, tag)
		_ = binary.Write(&b, le, uint16(4))
		_ = binary.Write(&b, le, uint32(1))
		_ = binary.Write(&b, le, value)
	}

	// теги IFD идут по возрастанию
	_ = binary.Write(&b, le, uint16(entries))
	short(256, uint16(w))           // ImageWidth
	short(257, uint16(h))           // ImageLength
	short(258, 8)                   // BitsPerSample
	short(259, 1)                   // Compression: none
	short(262, 1)                   // PhotometricInterpretation: BlackIsZero
	long(273, dataOffset)           // StripOffsets
	short(274, uint16(orientation)) // Orientation
	short(277, 1)                   // SamplesPerPixel
	short(278, uint16(h))           // RowsPerStrip
	long(279, uint32(w*h))          // StripByteCounts
	_ = binary.Write(&b, le, uint32(0))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.WriteByte(uint8((x + y) % 256))
		}
	}
	return b.Bytes()
}
