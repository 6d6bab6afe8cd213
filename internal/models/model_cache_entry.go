package models

import (
	"time"

	"gorm.io/datatypes"
)

// CacheEntry is one cached resource keyed by name, with the ledger-reported
// freshness timestamp it was stored under.
type CacheEntry struct {
	Key       string         `gorm:"column:key;primary_key;type:varchar(255)" json:"key"`
	Payload   datatypes.JSON `gorm:"column:payload;type:json" json:"payload"`
	Timestamp int64          `gorm:"column:timestamp;not null" json:"timestamp"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (CacheEntry) TableName() string {
	return "cache_entry"
}
