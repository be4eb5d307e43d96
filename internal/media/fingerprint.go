package media

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint возвращает отпечаток содержимого: SHA-256 в нижнем hex-регистре.
// Одинаковые байты всегда дают одинаковый отпечаток.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
