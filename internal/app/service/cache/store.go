package cache

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/paywall/internal/models"
)

// ErrCacheMiss reports that no entry exists for a key.
var ErrCacheMiss = errors.New("cache: entry not found")

// Store persists cached resources keyed by name. Implementations: sqlite via
// gorm (on-device default) and redis (server-side hosts).
type Store interface {
	Get(ctx context.Context, key string) (payload []byte, timestamp int64, err error)
	Put(ctx context.Context, key string, payload []byte, timestamp int64) error
	Purge(ctx context.Context) error
}

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	var entry models.CacheEntry
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrCacheMiss
		}
		return nil, 0, fmt.Errorf("failed to load cache entry %s: %w", key, err)
	}
	return []byte(entry.Payload), entry.Timestamp, nil
}

func (s *gormStore) Put(ctx context.Context, key string, payload []byte, timestamp int64) error {
	entry := &models.CacheEntry{
		Key:       key,
		Payload:   datatypes.JSON(payload),
		Timestamp: timestamp,
	}
	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return fmt.Errorf("failed to save cache entry %s: %w", key, err)
	}
	return nil
}

func (s *gormStore) Purge(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.CacheEntry{}).Error; err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	return nil
}
