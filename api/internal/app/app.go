// Package app wires configuration into the shared dependencies of both
// binaries: logger, Postgres history, Redis gate and the engine registry.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"image-to-text/api/internal/config"
	"image-to-text/api/internal/inflight"
	"image-to-text/api/internal/ocr"
	"image-to-text/api/internal/ocr/azure"
	"image-to-text/api/internal/ocr/gemini"
	"image-to-text/api/internal/ocr/yandex"
	"image-to-text/api/internal/store"
)

func SetupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// Engines builds the registry. Azure is always there; yandex and gemini only
// when their credentials are set. DEFAULT_ENGINE falls back to azure.
func Engines(cfg *config.Config, log *slog.Logger) *ocr.Manager {
	az := azure.New(azure.Config{
		Endpoint:        cfg.AzureEndpoint,
		SubscriptionKey: cfg.AzureKey,
		PollDelay:       cfg.PollDelay,
	})
	all := []ocr.Engine{az}
	if cfg.YCOAuthToken != "" && cfg.YCFolderID != "" {
		all = append(all, yandex.New(cfg.YCOAuthToken, cfg.YCFolderID))
	}
	if cfg.GeminiAPIKey != "" {
		all = append(all, gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel))
	}

	def := ocr.Engine(az)
	for _, e := range all {
		if e.Name() == cfg.DefaultEngine {
			def = e
		}
	}
	if def.Name() != cfg.DefaultEngine {
		log.Warn("default engine is not configured, using azure", "engine", cfg.DefaultEngine)
	}
	mgr := ocr.NewManager(def, all...)
	log.Info("ocr engines ready", "default", def.Name(), "engines", mgr.Names())
	return mgr
}

// Deps — внешние хранилища; любое из них может быть nil, если не настроено.
type Deps struct {
	DB      *sql.DB
	Redis   *redis.Client
	History *store.RecognitionRepo
	Gate    *inflight.Gate
}

// Open connects to Postgres and Redis concurrently.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Deps, error) {
	d := &Deps{}
	g, gctx := errgroup.WithContext(ctx)

	if cfg.DatabaseURL != "" {
		g.Go(func() error {
			db, err := openDB(gctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			repo := store.NewRecognitionRepo(db)
			if err := repo.Migrate(gctx); err != nil {
				_ = db.Close()
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("db connected", "dsn", safeDSNSummary(cfg.DatabaseURL))
			d.DB, d.History = db, repo
			return nil
		})
	} else {
		log.Info("DATABASE_URL is empty, recognition history disabled")
	}

	if cfg.RedisAddr != "" {
		g.Go(func() error {
			rdb, err := openRedis(gctx, cfg.RedisAddr, cfg.RedisDB)
			if err != nil {
				return err
			}
			log.Info("redis connected", "addr", rdb.Options().Addr)
			d.Redis, d.Gate = rdb, inflight.NewGate(rdb, cfg.InflightTTL)
			return nil
		})
	} else {
		log.Info("REDIS_ADDR is empty, per-chat gate disabled")
	}

	if err := g.Wait(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Deps) Close() {
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

// PurgeLoop deletes history older than retention once per interval until ctx ends.
func (d *Deps) PurgeLoop(ctx context.Context, retention, interval time.Duration, log *slog.Logger) error {
	if d.History == nil || retention <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := d.History.PurgeOlderThan(ctx, retention)
			if err != nil {
				log.Warn("history purge failed", "err", err)
				continue
			}
			if n > 0 {
				log.Info("history purged", "rows", n)
			}
		}
	}
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

// openRedis принимает и host:port, и redis:// URL.
func openRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	var opt *redis.Options
	if strings.Contains(addr, "://") {
		o, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opt = o
	} else {
		opt = &redis.Options{Addr: addr, DB: db}
	}
	rdb := redis.NewClient(opt)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func safeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
