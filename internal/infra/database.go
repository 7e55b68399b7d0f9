package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kerm1977/plantilla1/internal/model"
)

// Models lists every table managed by AutoMigrate, parents first.
var Models = []any{
	&model.User{},
	&model.OAuthLink{},
	&model.AboutUs{},
	&model.Version{},
	&model.UploadedFile{},
}

// NewDatabase opens a GORM connection for the given driver ("postgres" via pgx,
// or "sqlite" via the pure-Go modernc driver), runs AutoMigrate and then applies
// the idempotent SQL patches GORM cannot express.
func NewDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY under concurrent requests
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates all tables and applies schema patches.
// Tests call it directly on an in-memory sqlite handle.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL that the model tags cannot describe.
// Emails are unique regardless of case: mixed-case legacy rows are folded to
// lower case where that cannot collide, then lower(email) gets a unique index.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		`UPDATE users SET email = lower(email)
		   WHERE email IS NOT NULL AND email <> lower(email)
		     AND NOT EXISTS (SELECT 1 FROM users o WHERE o.id <> users.id AND lower(o.email) = lower(users.email))`,
		`CREATE INDEX IF NOT EXISTS idx_files_user_date ON files (user_id, upload_date)`,
	}
	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}

	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ` + IndexUserEmailLower + ` ON users (lower(email))`).Error
	if err == nil {
		return nil
	}
	if !IsUniqueViolation(err) {
		return fmt.Errorf("email index: %w", err)
	}
	// Case-only duplicates from before the index existed; keep the lookup fast and
	// leave uniqueness to the service checks until they are merged by hand.
	log.Warn().Err(err).Msg("users share an email differing only in case; case-insensitive uniqueness not enforced")
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))`).Error; err != nil {
		return fmt.Errorf("email index: %w", err)
	}
	return nil
}
