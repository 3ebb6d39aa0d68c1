package i18n

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	m, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if m.Get(NothingToBeParsed) == "" || m.Get(ImageTypeNotSupported) == "" {
		t.Fatal("defaults must not be empty")
	}
	if got := m.Get(Key("no_such_key")); got != "no_such_key" {
		t.Fatalf("unknown key = %q", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MSG_BUSY", "hold on")
	m, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := m.Get(Busy); got != "hold on" {
		t.Fatalf("Busy = %q", got)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "en.yaml")
	data := []byte("nothing_to_be_parsed: \"No text found in the image.\"\nocr_error: \"OCR failed:\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write locale: %v", err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := m.Get(NothingToBeParsed); got != "No text found in the image." {
		t.Fatalf("NothingToBeParsed = %q", got)
	}
	if got := m.Get(OCRError); got != "OCR failed:" {
		t.Fatalf("OCRError = %q", got)
	}
	// ключи, которых нет в файле, берутся из env-default
	if m.Get(Busy) == "" {
		t.Fatal("missing keys should fall back to defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing locale file")
	}
}
