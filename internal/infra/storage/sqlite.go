package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	"otmarket/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage owns the market database connection and schema.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path and migrates
// the market tables. Failures are non-retriable *domain.StoreError values.
func NewStorage(path string) (*Storage, error) {
	// Ensure directory exists
	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, domain.NewFatalStoreError("create_db_dir", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, domain.NewFatalStoreError("open_db", err)
	}

	return NewStorageFromDB(db)
}

// NewStorageFromDB wraps an already opened gorm connection and migrates it.
func NewStorageFromDB(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&domain.ActiveOffer{}, &domain.HistoryOffer{}); err != nil {
		return nil, domain.NewFatalStoreError("migrate", err)
	}
	return &Storage{db: db}, nil
}

// SQLDB exposes the pooled connection for stores that do not go through gorm.
func (s *Storage) SQLDB() (*sql.DB, error) {
	return s.db.DB()
}

// Close closes the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
