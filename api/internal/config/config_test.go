package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AZURE_VISION_ENDPOINT", "https://westeurope.api.cognitive.microsoft.com/")
	t.Setenv("AZURE_VISION_KEY", "k")
	t.Setenv("OCR_POLL_DELAY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGHOST", "")
	t.Setenv("PORT", "")
	t.Setenv("DEFAULT_ENGINE", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg := Load()
	if cfg.PollDelay != 3*time.Second {
		t.Fatalf("PollDelay = %v", cfg.PollDelay)
	}
	if cfg.Port != "8080" || cfg.DefaultEngine != "azure" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if err := cfg.ValidateBot(); err == nil {
		t.Fatal("ValidateBot should fail without a token")
	}
}

func TestPollDelayFormats(t *testing.T) {
	t.Setenv("AZURE_VISION_ENDPOINT", "https://e/")
	t.Setenv("AZURE_VISION_KEY", "k")

	t.Setenv("OCR_POLL_DELAY", "5s")
	if d := Load().PollDelay; d != 5*time.Second {
		t.Fatalf("5s -> %v", d)
	}
	t.Setenv("OCR_POLL_DELAY", "3000")
	if d := Load().PollDelay; d != 3*time.Second {
		t.Fatalf("3000 -> %v", d)
	}
	t.Setenv("OCR_POLL_DELAY", "soon")
	if d := Load().PollDelay; d != 3*time.Second {
		t.Fatalf("bad value -> %v", d)
	}
}

func TestResolveDSNFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGHOST", "db")
	t.Setenv("PGPORT", "6543")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p@ss")
	t.Setenv("POSTGRES_DB", "ocr")

	want := "postgres://u:p%40ss@db:6543/ocr?sslmode=disable"
	if got := resolveDSN(); got != want {
		t.Fatalf("resolveDSN() = %q, want %q", got, want)
	}
}
