package store

import (
	"embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"polished/internal/middleware"

	"gorm.io/gorm"
)

// Migration is a versioned schema change applied exactly once per database.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

//go:embed migrations/*.sql
var migrationFS embed.FS

func loadMigrations() ([]Migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		base := strings.TrimSuffix(name, ".up.sql")
		parts := strings.SplitN(base, "_", 2)
		if len(parts) != 2 {
			middleware.Logger.Warn("skipping migration with invalid naming", slog.String("file", name))
			continue
		}

		var version int
		if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
			middleware.Logger.Warn("skipping migration with invalid version", slog.String("file", name))
			continue
		}

		upBytes, err := migrationFS.ReadFile(filepath.Join("migrations", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read up migration %s: %w", name, err)
		}

		m := Migration{
			Version:  version,
			Name:     parts[1],
			UpScript: string(upBytes),
		}

		downName := base + ".down.sql"
		if downBytes, err := migrationFS.ReadFile(filepath.Join("migrations", downName)); err == nil {
			m.DownScript = string(downBytes)
		}

		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// migrate applies all pending up migrations in version order, recording
// each in schema_migrations.
func migrate(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var count int64
		if err := db.Raw("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count).Error; err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			for _, stmt := range splitStatements(m.UpScript) {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("statement failed: %w", err)
				}
			}
			return tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d_%s failed: %w", m.Version, m.Name, err)
		}

		middleware.Logger.Info("applied migration",
			slog.Int("version", m.Version),
			slog.String("name", m.Name),
		)
	}

	return nil
}

// splitStatements breaks a migration script into individual statements.
// Good enough for DDL scripts without string literals containing ';'.
func splitStatements(script string) []string {
	var statements []string
	for _, raw := range strings.Split(script, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
