package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/stadam23/tradeup-ev/internal/catalogsync"
	"github.com/stadam23/tradeup-ev/internal/config"
	"github.com/stadam23/tradeup-ev/internal/fetcher"
	"github.com/stadam23/tradeup-ev/internal/floatcatalog"
	"github.com/stadam23/tradeup-ev/internal/httpapi"
	"github.com/stadam23/tradeup-ev/internal/logger"
	"github.com/stadam23/tradeup-ev/internal/market"
	"github.com/stadam23/tradeup-ev/internal/queue"
	"github.com/stadam23/tradeup-ev/internal/readlayer"
	"github.com/stadam23/tradeup-ev/internal/store/sqlite"
	"github.com/stadam23/tradeup-ev/internal/tradeup"
)

var version = "dev"

func main() {
	config.LoadDotEnv()

	port := flag.Int("port", 13370, "HTTP server port")
	host := flag.String("host", "127.0.0.1", "Host to bind to (use 0.0.0.0 to allow LAN/remote access)")
	flag.Parse()

	logger.Banner(version)

	cfg := config.Load()

	wd, _ := os.Getwd()
	dataDir := filepath.Join(wd, "data")
	os.MkdirAll(dataDir, 0755)

	db, err := sqlite.Open(filepath.Join(dataDir, "catalog.db"))
	if err != nil {
		logger.Error("DB", fmt.Sprintf("failed to open database: %v", err))
		os.Exit(1)
	}
	defer db.Close()

	f := fetcher.New()
	adapter := market.New(f, "")
	floats := floatcatalog.New(cfg.SkinFloatSourceURL)
	read := readlayer.New(db, adapter)
	engine := tradeup.New(read, read, floats)

	q, err := queue.New(cfg.RedisURL, cfg.CatalogSyncQueue)
	if err != nil {
		logger.Error("QUEUE", fmt.Sprintf("failed to connect to %s: %v", cfg.CatalogSyncQueue, err))
		os.Exit(1)
	}
	defer q.Close()

	worker := catalogsync.New(q, adapter, floats, db, cfg.SteamMaxAutoLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	for i := 0; i < cfg.CatalogSyncConcurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(ctx)
		}()
	}
	logger.Success("SYNC", fmt.Sprintf("catalog sync worker started (concurrency=%d)", cfg.CatalogSyncConcurrency))

	handler := httpapi.New(read, engine, q)

	addr := fmt.Sprintf("%s:%d", *host, *port)
	logger.Server(addr)

	httpServer := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		logger.Info("SERVER", "shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("SERVER", fmt.Sprintf("shutdown error: %v", err))
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("SERVER", fmt.Sprintf("failed: %v", err))
		os.Exit(1)
	}
	workers.Wait()
	logger.Info("SERVER", "stopped")
}
