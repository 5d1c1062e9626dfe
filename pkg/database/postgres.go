package database

import (
	"fmt"
	"time"

	"github.com/vynious/finOS/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewPostgresConnection opens the gorm connection pool for cfg.DatabaseURL.
func NewPostgresConnection(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Every concurrent user sync may hold a connection for its commit.
	sqlDB.SetMaxOpenConns(cfg.SyncUserConcurrency*2 + 8)
	sqlDB.SetMaxIdleConns(cfg.SyncUserConcurrency + 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
