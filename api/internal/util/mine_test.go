package util

import (
	"encoding/base64"
	"testing"
)

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
)

func TestSniffSubtype(t *testing.T) {
	if got := SniffSubtype(pngMagic); got != "png" {
		t.Fatalf("png: got %q", got)
	}
	if got := SniffSubtype(jpegMagic); got != "jpeg" {
		t.Fatalf("jpeg: got %q", got)
	}
	if got := SniffSubtype([]byte("%PDF-1.4\n")); got != "" {
		t.Fatalf("pdf: got %q, want empty", got)
	}
	if got := SniffSubtype(nil); got != "" {
		t.Fatalf("nil: got %q", got)
	}
}

func TestSniffMimeHTTP(t *testing.T) {
	if got := SniffMimeHTTP(pngMagic); got != "image/png" {
		t.Fatalf("png: got %q", got)
	}
	if got := SniffMimeHTTP([]byte("%PDF-1.4\n")); got != "application/pdf" {
		t.Fatalf("pdf: got %q", got)
	}
}

func TestDecodeBase64MaybeDataURL(t *testing.T) {
	raw := []byte("hello image")
	std := base64.StdEncoding.EncodeToString(raw)

	b, mime, err := DecodeBase64MaybeDataURL(std)
	if err != nil || string(b) != string(raw) || mime != "" {
		t.Fatalf("plain: %q %q %v", b, mime, err)
	}

	// пробел после запятой — как в data URL, который собирал исходный виджет
	b, mime, err = DecodeBase64MaybeDataURL("data:image/png;base64, " + std)
	if err != nil || string(b) != string(raw) || mime != "image/png" {
		t.Fatalf("data url: %q %q %v", b, mime, err)
	}

	urlSafe := base64.URLEncoding.EncodeToString([]byte{0xfb, 0xff, 0xfe})
	if b, _, err = DecodeBase64MaybeDataURL(urlSafe); err != nil || len(b) != 3 {
		t.Fatalf("url-safe: %v %v", b, err)
	}

	if _, _, err = DecodeBase64MaybeDataURL("!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestSHA256Hex(t *testing.T) {
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Hex(nil); got != want {
		t.Fatalf("SHA256Hex(nil) = %s", got)
	}
}
