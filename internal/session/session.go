// Package session provides the panel's persistent state using GORM and
// SQLite. The only value that crosses session boundaries is the selected
// catalog identifier; the catalog cache table is a droppable convenience
// that feeds the cache-timestamp display.
package session

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Sentinel errors following Dave Cheney's principle: define errors as values
var (
	ErrNotFound = errors.New("record not found")
)

// selectionKey is the single row key of the selections table.
const selectionKey = "selected_catalog"

// Selection is the session-restorable catalog choice.
type Selection struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;unique"`
	CatalogID string `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName overrides the table name for GORM.
func (Selection) TableName() string {
	return "selections"
}

// CatalogCache is the last fetched catalog payload with its fetch time.
type CatalogCache struct {
	ID        uint      `gorm:"primaryKey"`
	CatalogID string    `gorm:"not null;unique"`
	Payload   string    `gorm:"type:json"`
	FetchedAt time.Time `gorm:"not null"`
}

// TableName overrides the table name for GORM.
func (CatalogCache) TableName() string {
	return "catalog_cache"
}

// Store defines the interface for session persistence operations.
type Store interface {
	Close() error
	SelectedCatalogID() (string, error)
	SetSelectedCatalogID(id string) error
	CachedCatalog(catalogID string) (*CatalogCache, error)
	PutCachedCatalog(catalogID, payload string, fetchedAt time.Time) error
	DropCachedCatalog(catalogID string) error
}

// DB wraps gorm.DB with session operations.
type DB struct {
	db *gorm.DB
}

// Config holds database configuration.
type Config struct {
	DatabasePath string
	LogLevel     string // silent, error, warn, info
}

// InitDB initializes the database connection and runs migrations.
func InitDB(cfg Config) (*DB, error) {
	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Selection{}, &CatalogCache{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// SelectedCatalogID returns the restored catalog selection, empty when no
// selection was ever persisted.
func (d *DB) SelectedCatalogID() (string, error) {
	var sel Selection
	err := d.db.Where("key = ?", selectionKey).First(&sel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load selection: %w", err)
	}
	return sel.CatalogID, nil
}

// SetSelectedCatalogID upserts the catalog selection. An empty id clears it.
func (d *DB) SetSelectedCatalogID(id string) error {
	if id == "" {
		if err := d.db.Where("key = ?", selectionKey).Delete(&Selection{}).Error; err != nil {
			return fmt.Errorf("failed to clear selection: %w", err)
		}
		return nil
	}
	var sel Selection
	err := d.db.Where("key = ?", selectionKey).First(&sel).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sel = Selection{Key: selectionKey, CatalogID: id, UpdatedAt: time.Now()}
		if err := d.db.Create(&sel).Error; err != nil {
			return fmt.Errorf("failed to persist selection: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to load selection: %w", err)
	default:
		sel.CatalogID = id
		sel.UpdatedAt = time.Now()
		if err := d.db.Save(&sel).Error; err != nil {
			return fmt.Errorf("failed to update selection: %w", err)
		}
	}
	return nil
}

// CachedCatalog retrieves the cached payload for a catalog.
// Returns ErrNotFound when nothing was cached.
func (d *DB) CachedCatalog(catalogID string) (*CatalogCache, error) {
	if catalogID == "" {
		return nil, fmt.Errorf("catalog id cannot be empty")
	}
	var cache CatalogCache
	err := d.db.Where("catalog_id = ?", catalogID).First(&cache).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog cache: %w", err)
	}
	return &cache, nil
}

// PutCachedCatalog upserts the cached payload for a catalog.
func (d *DB) PutCachedCatalog(catalogID, payload string, fetchedAt time.Time) error {
	if catalogID == "" {
		return fmt.Errorf("catalog id cannot be empty")
	}
	var cache CatalogCache
	err := d.db.Where("catalog_id = ?", catalogID).First(&cache).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		cache = CatalogCache{CatalogID: catalogID, Payload: payload, FetchedAt: fetchedAt}
		if err := d.db.Create(&cache).Error; err != nil {
			return fmt.Errorf("failed to cache catalog: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to load catalog cache: %w", err)
	default:
		cache.Payload = payload
		cache.FetchedAt = fetchedAt
		if err := d.db.Save(&cache).Error; err != nil {
			return fmt.Errorf("failed to update catalog cache: %w", err)
		}
	}
	return nil
}

// DropCachedCatalog removes the cached payload for a catalog. Used by the
// force-refresh path before refetching.
func (d *DB) DropCachedCatalog(catalogID string) error {
	if err := d.db.Where("catalog_id = ?", catalogID).Delete(&CatalogCache{}).Error; err != nil {
		return fmt.Errorf("failed to drop catalog cache: %w", err)
	}
	return nil
}
