package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sqlite-user-service/internal/adapter/db/sqlite"
	"sqlite-user-service/internal/config"
	"sqlite-user-service/pkg/database"
	"sqlite-user-service/pkg/logger"
)

// NewDatabase opens the SQLite file, configures the pool and prepares the
// users table. It must run before the HTTP listener opens.
func NewDatabase(ctx context.Context, cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.Open(database.Options{
		DSN:             cfg.DB.DSN(),
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DB.ConnMaxLifetime) * time.Second,
		Logger:          logger.NewGormLogger(l, cfg.Logger.SlowQuerySeconds, cfg.Logger.Level),
	})
	if err != nil {
		return nil, err
	}

	seeded, err := sqlite.InitSchema(ctx, db, l)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	l.Info("database ready",
		zap.String("path", cfg.DB.Path),
		zap.Int("seeded", seeded),
		zap.Int("max_open_conns", cfg.DB.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.DB.MaxIdleConns),
		zap.Int("conn_max_lifetime_seconds", cfg.DB.ConnMaxLifetime),
	)

	return db, nil
}

// CloseDatabase closes the database connection
func CloseDatabase(db *gorm.DB) error {
	return database.Close(db)
}
