package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"market_analyzer/internal/app/config"
	"market_analyzer/internal/app/di"
	"market_analyzer/internal/platform/logger"
)

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

	start, end, err := cfg.Range()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := di.NewIngest(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer in.Store.Close()

	run := func() error {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Ingest.Timeout)
		defer cancel()

		report, err := in.Usecase.Ingest(runCtx, cfg.Ticker, start, end)
		if cfg.Metrics.PushURL != "" {
			if perr := in.Recorder.Push(runCtx, cfg.Metrics.PushURL, cfg.Metrics.Job); perr != nil {
				slog.Warn("metrics push failed", "error", perr)
			}
		}
		if err != nil {
			return err
		}
		slog.Info("ingest ok", "ticker", report.Ticker, "provider", report.Provider, "stored", report.Stored, "empty", report.Empty)
		return nil
	}

	if cfg.Ingest.Schedule == "" {
		if err := run(); err != nil {
			in.Store.Close()
			log.Fatal(err)
		}
		return
	}

	// 定期実行。前回の実行が終わっていなければスキップする
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(cfg.Ingest.Schedule, func() {
		if err := run(); err != nil {
			slog.Error("scheduled ingest failed", "ticker", cfg.Ticker, "error", err)
		}
	}); err != nil {
		in.Store.Close()
		log.Fatalf("invalid ingest schedule %q: %v", cfg.Ingest.Schedule, err)
	}
	slog.Info("ingest scheduled", "ticker", cfg.Ticker, "schedule", cfg.Ingest.Schedule)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("ingest scheduler stopped")
}
