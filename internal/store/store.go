// Package store provides the embedded SQLite persistence layer. All
// durable state lives in a single database file; every mutation commits
// to disk before it is acknowledged.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"polished/internal/config"
	"polished/internal/middleware"
	"polished/internal/models"
	"polished/internal/observability"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the embedded database handle. Reads go through DB();
// mutations are funneled through Mutate, which serializes writers so a
// mutation is fully durable before the next one is accepted.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
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
		l.logger.ErrorContext(ctx, "query error",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	case elapsed > l.Config.SlowThreshold && l.Config.SlowThreshold != 0 && l.Config.LogLevel >= logger.Warn:
		l.logger.WarnContext(ctx, "slow query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	case l.Config.LogLevel >= logger.Info:
		l.logger.InfoContext(ctx, "query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	}
}

// Open opens (or creates) the database file at cfg.DBPath and applies
// pending schema migrations. Safe to call once per process lifetime;
// every other operation requires the returned handle.
func Open(cfg *config.Config) (*Store, error) {
	dsn := buildDSN(cfg.DBPath)

	gormLogger := &gormSlogLogger{
		logger: middleware.Logger,
		Config: logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps in-memory databases coherent and makes
	// the embedded engine a strictly serialized writer.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	middleware.Logger.Info("database ready", slog.String("path", cfg.DBPath))
	return &Store{db: db}, nil
}

func buildDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_fk=1"
	}
	// _sync=2 (FULL) so each commit reaches the disk before returning;
	// a mutation that fails to persist is reported as failed.
	return fmt.Sprintf("file:%s?_fk=1&_busy_timeout=5000&_sync=2", path)
}

// DB returns the handle for read-only queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Mutate runs fn inside a transaction while holding the store's write
// lock. The commit is durable before Mutate returns. AppErrors raised
// by fn (validation, not-found) pass through unchanged; engine-level
// failures surface as persistence errors and nothing is retained.
func (s *Store) Mutate(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer observability.TrackMutation(operation)()

	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}

	observability.StoreMutationErrors.WithLabelValues(operation).Inc()

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewPersistenceError(err)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
