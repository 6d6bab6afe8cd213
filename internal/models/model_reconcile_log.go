package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReconcileOutcome string

const (
	ReconcileOutcomeAccepted     ReconcileOutcome = "accepted"
	ReconcileOutcomeRejected     ReconcileOutcome = "rejected"
	ReconcileOutcomeError        ReconcileOutcome = "error"
	ReconcileOutcomeVerifyFailed ReconcileOutcome = "verify_failed"
)

// ReconcileLog records one ledger submission attempt for a purchase token.
// One token may appear more than once (at-least-once retries); the ledger is
// idempotent on the token, the log just makes the retries auditable.
type ReconcileLog struct {
	ID            string           `gorm:"column:id;primary_key;type:uuid" json:"id"`
	OwnerID       string           `gorm:"column:owner_id;type:varchar(64);not null;index" json:"owner_id"`
	ProductID     string           `gorm:"column:product_id;type:varchar(128);not null" json:"product_id"`
	PurchaseToken string           `gorm:"column:purchase_token;type:varchar(255);not null;index" json:"purchase_token"`
	Outcome       ReconcileOutcome `gorm:"column:outcome;type:varchar(32);not null" json:"outcome"`
	Detail        datatypes.JSON   `gorm:"column:detail;type:json" json:"detail"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (ReconcileLog) TableName() string {
	return "reconcile_log"
}
