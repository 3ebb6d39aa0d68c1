package util

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffSubtype определяет подтип изображения по байтам: "jpeg", "png", "gif", ...
// Пусто, если это не картинка.
func SniffSubtype(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	m := mimetype.Detect(b)
	typ, sub, ok := strings.Cut(m.String(), "/")
	if !ok || typ != "image" {
		return ""
	}
	if i := strings.IndexByte(sub, ';'); i >= 0 {
		sub = sub[:i]
	}
	return sub
}

// SniffMimeHTTP returns a Content-Type for b, application/octet-stream when unknown.
func SniffMimeHTTP(b []byte) string {
	return mimetype.Detect(b).String()
}

// DecodeBase64MaybeDataURL декодирует base64. Если это data:URI, вернёт MIME из префикса.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = strings.TrimSpace(s[idx+1:])
		}
	}
	// стандартная база64, затем URL-safe — на случай вариаций
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	} else if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	} else {
		return nil, "", err
	}
}

// SHA256Hex is the cache key for an image.
func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
