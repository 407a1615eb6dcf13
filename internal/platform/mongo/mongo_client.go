// Package mongo connects to the MongoDB deployment that hosts the series collection.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Config holds the MongoDB connection settings.
type Config struct {
	URI        string        `yaml:"uri" envconfig:"URI" validate:"required"`
	Database   string        `yaml:"database" envconfig:"DATABASE" validate:"required"`
	Collection string        `yaml:"collection" envconfig:"COLLECTION" validate:"required"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// ClientOptions builds the driver options for cfg.
func ClientOptions(cfg Config) *options.ClientOptions {
	opts := options.Client().ApplyURI(cfg.URI).SetAppName("market_analyzer")
	if cfg.Timeout > 0 {
		opts.SetConnectTimeout(cfg.Timeout).SetServerSelectionTimeout(cfg.Timeout)
	}
	return opts
}

// NewMongoClient connects and pings the primary.
// The caller owns the client and must Disconnect it.
func NewMongoClient(ctx context.Context, cfg Config) (*mongo.Client, error) {
	client, err := mongo.Connect(ClientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	// 接続確認
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		slog.Error("MongoDB connection failed", "database", cfg.Database, "error", err)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	slog.Info("MongoDB connection successful", "database", cfg.Database)
	return client, nil
}
