package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"image-to-text/api/internal/app"
	"image-to-text/api/internal/config"
	"image-to-text/api/internal/httpserver"
	"image-to-text/api/internal/i18n"
	"image-to-text/api/internal/telegram"
)

func main() {
	cfg := config.Load()
	if err := cfg.ValidateBot(); err != nil {
		log.Fatal(err)
	}
	logger := app.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgs, err := i18n.Load(cfg.LocaleFile)
	if err != nil {
		log.Fatal(err)
	}

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer deps.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false
	logger.Info("authorized on telegram", "bot", bot.Self.UserName)

	r := &telegram.Router{
		Bot:         bot,
		EngManager:  app.Engines(cfg, logger),
		Msg:         msgs,
		Log:         logger,
		CacheMaxAge: cfg.CacheMaxAge,
	}
	if deps.History != nil {
		r.History = deps.History
	}
	if deps.Gate != nil {
		r.Gate = deps.Gate
	}

	srv := httpserver.New("0.0.0.0:"+cfg.Port, logger)
	if deps.DB != nil {
		srv.AddCheck("db", deps.DB.PingContext)
	}
	if deps.Gate != nil {
		srv.AddCheck("redis", deps.Gate.Ping)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return deps.PurgeLoop(gctx, cfg.HistoryRetention, time.Hour, logger) })

	// --- Choose mode: Webhook vs Polling ---
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		updates, err := setupWebhook(gctx, bot, srv.Mux, webhookURL, logger)
		if err != nil {
			log.Fatal(err)
		}
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case upd := <-updates:
					go r.HandleUpdate(gctx, upd)
				}
			}
		})
	} else {
		g.Go(func() error {
			runPolling(gctx, bot, logger, func(upd tgbotapi.Update) {
				go r.HandleUpdate(gctx, upd)
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("bot stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("bot stopped")
}

// ---------------- Webhook -----------------

// setupWebhook registers the secret webhook path on mux instead of DefaultServeMux.
// Updates stop being delivered once ctx is done.
func setupWebhook(ctx context.Context, bot *tgbotapi.BotAPI, mux *http.ServeMux, baseURL string, logger *slog.Logger) (<-chan tgbotapi.Update, error) {
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return nil, err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return nil, err
	}

	ch := make(chan tgbotapi.Update, bot.Buffer)
	mux.HandleFunc(path, webhookHandler(ctx, bot.HandleUpdate, ch))
	logger.Info("webhook registered", "path", path)
	return ch, nil
}

// webhookHandler кладёт апдейт в ch; если читатель уже ушёл, запрос не висит.
func webhookHandler(ctx context.Context, decode func(*http.Request) (*tgbotapi.Update, error), ch chan<- tgbotapi.Update) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		upd, err := decode(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case ch <- *upd:
		case <-ctx.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		case <-req.Context().Done():
		}
	}
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// runPolling — устойчивый long polling с backoff, без log.Fatal/os.Exit.
func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, logger *slog.Logger, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			logger.Info("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			logger.Warn("polling error", "err", err, "retry_in", d)
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func shortHash(s string) string {
	// лёгкий хэш для пути вебхука (не крипто, но стабильно для токена)
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return strconv.FormatUint(h, 16)
}
