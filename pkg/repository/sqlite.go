package repository

import (
	"errors"
	"fmt"
	"strings"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/ecomshop/pkg/config"
)

// NewSQLiteStore opens a GormStore on an embedded SQLite database. SQLite
// has no row locks, so the pool is limited to one connection and
// transactions run one at a time.
func NewSQLiteStore(cfg *config.SQLiteConfig, log *zap.Logger) (*GormStore, error) {
	db, err := OpenSQLite(cfg.Path, log)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	return &GormStore{db: db}, nil
}

// OpenSQLite opens path, or ":memory:" for a database that lives as long as
// the returned handle.
func OpenSQLite(path string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), GormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

const sqliteUniqueFailed = "UNIQUE constraint failed: "

// sqliteDuplicate extracts the column from
// "constraint failed: UNIQUE constraint failed: users.email (2067)".
func sqliteDuplicate(err error) (string, bool) {
	var sqliteErr *gosqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return "", false
	}
	msg := sqliteErr.Error()
	i := strings.Index(msg, sqliteUniqueFailed)
	if i < 0 {
		return "", false
	}
	key := msg[i+len(sqliteUniqueFailed):]
	if sp := strings.Index(key, " ("); sp >= 0 {
		key = key[:sp]
	}
	return key, true
}
