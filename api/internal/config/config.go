package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	// Azure Computer Vision (Read API)
	AzureEndpoint string
	AzureKey      string
	PollDelay     time.Duration

	DefaultEngine string

	TelegramBotToken string
	WebhookURL       string

	DatabaseURL      string
	CacheMaxAge      time.Duration
	HistoryRetention time.Duration

	RedisAddr   string
	RedisDB     int
	InflightTTL time.Duration

	YCOAuthToken string
	YCFolderID   string

	GeminiAPIKey string
	GeminiModel  string

	LocaleFile string
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("bad %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// допускаем просто число миллисекунд: OCR_POLL_DELAY=3000
		if ms, err2 := strconv.Atoi(v); err2 == nil {
			return time.Duration(ms) * time.Millisecond
		}
		log.Printf("bad %s=%q, using %s", k, v, def)
		return def
	}
	return d
}

// Load reads .env.local (if any) and then the process environment.
// Azure credentials are required; other engines are optional.
func Load() *Config {
	loadEnvFile()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AzureEndpoint: mustEnv("AZURE_VISION_ENDPOINT"),
		AzureKey:      mustEnv("AZURE_VISION_KEY"),
		PollDelay:     getEnvDuration("OCR_POLL_DELAY", 3*time.Second),

		DefaultEngine: strings.ToLower(getEnv("DEFAULT_ENGINE", "azure")),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		WebhookURL:       os.Getenv("WEBHOOK_URL"),

		DatabaseURL:      resolveDSN(),
		CacheMaxAge:      getEnvDuration("CACHE_MAX_AGE", 24*time.Hour),
		HistoryRetention: getEnvDuration("HISTORY_RETENTION", 30*24*time.Hour),

		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		InflightTTL: getEnvDuration("INFLIGHT_TTL", 2*time.Minute),

		YCOAuthToken: os.Getenv("YC_OAUTH_TOKEN"),
		YCFolderID:   os.Getenv("YC_FOLDER_ID"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		LocaleFile: os.Getenv("LOCALE_FILE"),
	}
	return cfg
}

// ValidateBot checks what the Telegram host needs on top of Load.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}
	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// resolveDSN: DATABASE_URL, иначе собираем из POSTGRES_* / PG*.
// Пустая строка — история распознаваний отключена.
func resolveDSN() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	host := strings.TrimSpace(os.Getenv("PGHOST"))
	if host == "" {
		return ""
	}
	user := getEnv("POSTGRES_USER", "imagetext")
	pass := os.Getenv("POSTGRES_PASSWORD")
	port := getEnv("PGPORT", "5432")
	db := getEnv("POSTGRES_DB", "imagetext")
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
