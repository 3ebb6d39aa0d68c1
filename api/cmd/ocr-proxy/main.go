package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"image-to-text/api/internal/app"
	"image-to-text/api/internal/config"
	handle "image-to-text/api/internal/handle"
	"image-to-text/api/internal/httpserver"
)

func main() {
	cfg := config.Load()
	logger := app.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer deps.Close()

	var history handle.History
	if deps.History != nil {
		history = deps.History
	}
	h := handle.New(app.Engines(cfg, logger), history, cfg.CacheMaxAge, logger)

	srv := httpserver.New(":"+cfg.Port, logger)
	if deps.DB != nil {
		srv.AddCheck("db", deps.DB.PingContext)
	}
	if deps.Gate != nil {
		srv.AddCheck("redis", deps.Gate.Ping)
	}
	h.Register(srv.Mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return deps.PurgeLoop(gctx, cfg.HistoryRetention, time.Hour, logger) })

	if err := g.Wait(); err != nil {
		logger.Error("ocr-proxy stopped", "err", err)
		os.Exit(1)
	}
}
