package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"market_analyzer/internal/app/config"
	"market_analyzer/internal/app/di"
	"market_analyzer/internal/feature/bars/presentation"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Ingest.Timeout)
	defer cancel()

	store, err := di.NewStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := presentation.NewRenderer(cfg.Output.Format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := presentation.ArtifactPath(cfg.Output.Dir, cfg.Ticker, r.Ext())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}

	a, err := di.NewAnalyze(store).Render(ctx, cfg.Ticker, cfg.Window, r, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close artifact: %w", cerr)
	}
	if err != nil {
		return err
	}
	slog.Info("analysis written", "ticker", a.Ticker, "window", a.Window, "rows", len(a.Bars), "path", path)

	if cfg.Output.Open {
		if err := presentation.Open(path); err != nil {
			slog.Warn("could not open artifact", "path", path, "error", err)
		}
	}
	return nil
}
