package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"market_analyzer/internal/app/config"
	"market_analyzer/internal/app/di"
	"market_analyzer/internal/app/router"
	barshandler "market_analyzer/internal/feature/bars/transport/handler"
	"market_analyzer/internal/platform/logger"
	"market_analyzer/internal/platform/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .envを読み込む
	if err := godotenv.Load(".env"); err != nil {
		log.Println("[INFO] .env not found; using system environment variables")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}
	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store（Redisが使えない場合はキャッシュなし）
	store, err := di.NewStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// Usecase
	analyzeUC := di.NewAnalyze(store)

	// Handler
	barsH := barshandler.NewBarsHandler(analyzeUC, cfg.Window)

	// ルータ生成
	r := router.NewRouter(barsH, store.Checks, metrics.NewRecorder().Handler())

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		slog.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}
