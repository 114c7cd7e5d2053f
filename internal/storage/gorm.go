package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"aurabattle/internal/config"
	"aurabattle/internal/middleware"
	"aurabattle/internal/observability"
)

// Blob is one durable key-value entry.
type Blob struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM.
func (Blob) TableName() string {
	return "blobs"
}

// Ensure GormStore implements Store
var _ Store = (*GormStore)(nil)

// GormStore implements Store on a relational database through GORM:
// SQLite for embedded and test use, PostgreSQL for server deployments.
// Multi-key commits run in a single transaction.
type GormStore struct {
	db      *gorm.DB
	backend string
}

// gormSlogLogger integrates GORM with slog
type gormSlogLogger struct {
	logger *slog.Logger
	Config logger.Config
}

// LogMode sets the logging level and returns a new interface instance.
func (l *gormSlogLogger) LogMode(level logger.LogLevel) logger.Interface {
	newlogger := *l
	newlogger.Config.LogLevel = level
	return &newlogger
}

// Info logs an informational message with context.
func (l *gormSlogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Warn logs a warning message with context.
func (l *gormSlogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormSlogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace logs trace-level information including SQL queries and execution time.
func (l *gormSlogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && l.Config.LogLevel >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		l.logger.ErrorContext(ctx, "GORM query error",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	case elapsed > l.Config.SlowThreshold && l.Config.SlowThreshold != 0 && l.Config.LogLevel >= logger.Warn:
		l.logger.WarnContext(ctx, "GORM slow query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	case l.Config.LogLevel >= logger.Info:
		l.logger.InfoContext(ctx, "GORM query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	}
}

func newGormLogger() logger.Interface {
	return &gormSlogLogger{
		logger: middleware.Logger,
		Config: logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	}
}

// NewSQLite opens (creating if needed) a SQLite-backed store at dbPath.
func NewSQLite(dbPath string) (*GormStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Every pooled connection to :memory: would get its own database, so
	// pin the pool to a single connection.
	if dbPath == ":memory:" {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	return newGormStore(db, config.BackendSQLite)
}

// NewPostgres connects a PostgreSQL-backed store using the provided configuration.
func NewPostgres(cfg *config.Config) (*GormStore, error) {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		sslMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pooling parameters
	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	return newGormStore(db, config.BackendPostgres)
}

func newGormStore(db *gorm.DB, backend string) (*GormStore, error) {
	if err := db.AutoMigrate(&Blob{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db, backend: backend}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	observability.StorageOps.WithLabelValues(s.backend, "get").Inc()
	var blob Blob
	err := s.db.WithContext(ctx).First(&blob, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		observability.StorageErrors.WithLabelValues(s.backend, "get").Inc()
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return blob.Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	observability.StorageOps.WithLabelValues(s.backend, "set").Inc()
	if err := s.upsert(s.db.WithContext(ctx), key, value); err != nil {
		observability.StorageErrors.WithLabelValues(s.backend, "set").Inc()
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) SetAll(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	observability.StorageOps.WithLabelValues(s.backend, "setall").Inc()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for k, v := range entries {
			if err := s.upsert(tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		observability.StorageErrors.WithLabelValues(s.backend, "setall").Inc()
		return fmt.Errorf("setall: %w", err)
	}
	return nil
}

func (s *GormStore) upsert(tx *gorm.DB, key, value string) error {
	blob := Blob{Key: key, Value: value}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&blob).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	observability.StorageOps.WithLabelValues(s.backend, "del").Inc()
	if err := s.db.WithContext(ctx).Delete(&Blob{}, "key = ?", key).Error; err != nil {
		observability.StorageErrors.WithLabelValues(s.backend, "del").Inc()
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
