// Package db opens the relational series store with GORM.
package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const retryInterval = 3 * time.Second

// Config holds the PostgreSQL connection settings.
type Config struct {
	User         string `yaml:"user" envconfig:"USER"`
	Password     string `yaml:"password" envconfig:"PASSWORD"`
	Name         string `yaml:"name" envconfig:"NAME"`
	Host         string `yaml:"host" envconfig:"HOST"`
	Port         string `yaml:"port" envconfig:"PORT"`
	SSLMode      string `yaml:"sslmode" envconfig:"SSLMODE"`
	InstanceName string `yaml:"instance_name" envconfig:"INSTANCE_CONNECTION_NAME"` // Cloud SQL instance, connects over its unix socket
}

// Opener opens a *gorm.DB for a DSN. It is swapped out in tests.
type Opener func(dsn string) (*gorm.DB, error)

// BuildDSN builds a PostgreSQL keyword/value DSN. Sessions run in UTC.
func BuildDSN(cfg Config) string {
	host, port := cfg.Host, cfg.Port
	if cfg.InstanceName != "" {
		host, port = "/cloudsql/"+cfg.InstanceName, ""
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	parts := []string{
		"host=" + host,
		"user=" + cfg.User,
		"password=" + cfg.Password,
		"dbname=" + cfg.Name,
	}
	if port != "" {
		parts = append(parts, "port="+port)
	}
	parts = append(parts, "sslmode="+sslmode, "TimeZone=UTC")
	return strings.Join(parts, " ")
}

// PostgresOpener opens PostgreSQL with a quiet GORM logger.
func PostgresOpener(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// OpenSQLite opens (or creates) a SQLite file. ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// ConnectWithRetry opens the database, retrying every few seconds until timeout elapses.
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("DB connect failed after %s: %w", timeout, err)
		}
		slog.Warn("DB connect failed, retrying", "error", err, "retry_in", retryInterval)
		time.Sleep(retryInterval)
	}
}
