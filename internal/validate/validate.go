// Package validate holds the cheap pre-write checks every upload must pass:
// an extension-based MIME allow-list, a payload sniff, and a size cap. All
// checks are pure so a failure guarantees zero bytes written anywhere.
package validate

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
)

// MaxUploadBytes is the default payload cap (10 MiB).
const MaxUploadBytes int64 = 10 << 20

// allowedTypes is the upload allow-list. Only JPEG, PNG and PDF survive.
var allowedTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"application/pdf": {},
}

// CheckType resolves a MIME type from the filename extension and returns it
// when allow-listed. Unresolvable extensions and anything off-list fail with
// ErrUnsupportedType.
func CheckType(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "", ErrUnsupportedType
	}
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return "", ErrUnsupportedType
	}
	// TypeByExtension may append parameters ("; charset=...").
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if _, ok := allowedTypes[mt]; !ok {
		return "", ErrUnsupportedType
	}
	return mt, nil
}

// CheckSize enforces the payload cap. max <= 0 falls back to MaxUploadBytes.
func CheckSize(n, max int64) error {
	if max <= 0 {
		max = MaxUploadBytes
	}
	if n > max {
		return ErrTooLarge
	}
	return nil
}

// CheckContent sniffs the first bytes of the payload and requires the
// detected type to match the declared one, closing the gap where a renamed
// binary rides in on a trusted extension. head should hold up to the first
// 512 bytes; an empty head is rejected outright.
func CheckContent(head []byte, declared string) error {
	if len(head) == 0 {
		return ErrUnsupportedType
	}
	sniffed := http.DetectContentType(head)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = strings.TrimSpace(sniffed[:i])
	}
	if sniffed != declared {
		return ErrUnsupportedType
	}
	return nil
}
