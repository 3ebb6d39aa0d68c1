package ocr

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestSubtypeFromFileName(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":          "jpg",
		"IMG_0001.JPEG":      "JPEG",
		"archive.tar.png":    "png",
		"noext":              "",
		"photos/file_12.png": "png",
		"":                   "",
	}
	for in, want := range cases {
		if got := SubtypeFromFileName(in); got != want {
			t.Fatalf("SubtypeFromFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsAcceptedSubtype(t *testing.T) {
	for _, s := range []string{"jpeg", "jpg", "png", "PNG", "JPG", "JPEG", " png "} {
		if !IsAcceptedSubtype(s) {
			t.Fatalf("%q should be accepted", s)
		}
	}
	for _, s := range []string{"", "gif", "bmp", "tiff", "pdf", "webp", "jpgx"} {
		if IsAcceptedSubtype(s) {
			t.Fatalf("%q should be rejected", s)
		}
	}
}

func TestPayloadFromCapture(t *testing.T) {
	content := []byte{0x89, 'P', 'N', 'G'}
	b64 := base64.StdEncoding.EncodeToString(content)

	p, err := PayloadFromCapture("shot.PNG", b64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Subtype != "PNG" || p.FileName != "shot.PNG" || string(p.Content) != string(content) {
		t.Fatalf("unexpected payload: %+v", p)
	}

	p, err = PayloadFromCapture("shot.png", "data:image/png;base64,"+b64)
	if err != nil || string(p.Content) != string(content) {
		t.Fatalf("data url: %+v, %v", p, err)
	}
}

func TestPayloadFromCaptureCancelled(t *testing.T) {
	for _, name := range []string{"", "  "} {
		if _, err := PayloadFromCapture(name, "AAAA"); !errors.Is(err, ErrCancelled) {
			t.Fatalf("name %q: err = %v, want ErrCancelled", name, err)
		}
	}
}

func TestPayloadFromCaptureRejects(t *testing.T) {
	var ve *ValidationError
	if _, err := PayloadFromCapture("shot.gif", "AAAA"); !errors.As(err, &ve) {
		t.Fatalf("gif: err = %v, want ValidationError", err)
	}
	if _, err := PayloadFromCapture("shot.jpg", "%%%not-base64%%%"); !errors.As(err, &ve) {
		t.Fatalf("bad base64: err = %v, want ValidationError", err)
	}
	if _, err := PayloadFromCapture("shot.jpg", ""); !errors.As(err, &ve) {
		t.Fatalf("empty content: err = %v, want ValidationError", err)
	}
}
