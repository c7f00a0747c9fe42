package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	LockStatusActive   = "ACTIVE"
	LockStatusReleased = "RELEASED"
	LockStatusCaptured = "CAPTURED"
)

// PointsLock reserves part of a user's balance against a context (the auction).
type PointsLock struct {
	LockID    uuid.UUID `gorm:"column:lock_id;type:uuid;primaryKey" json:"lock_id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_lock_user_status" json:"user_id"`
	Amount    int64     `gorm:"column:amount;not null" json:"amount"`
	ContextID uuid.UUID `gorm:"column:context_id;type:uuid;not null;index" json:"context_id"`
	Status    string    `gorm:"column:status;type:varchar(10);not null;index:idx_lock_user_status" json:"status"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (PointsLock) TableName() string {
	return "PointsLocks"
}

func (l *PointsLock) BeforeCreate(tx *gorm.DB) error {
	if l.LockID == uuid.Nil {
		l.LockID = uuid.New()
	}
	return nil
}

// PointsAccount holds a user's total balance. Locks never change it; only a capture debits it.
type PointsAccount struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Balance   int64     `gorm:"column:balance;not null;default:0" json:"balance"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (PointsAccount) TableName() string {
	return "PointsAccounts"
}

type PointsLedgerEntry struct {
	EntryID   uuid.UUID `gorm:"column:entry_id;type:uuid;primaryKey" json:"entry_id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Amount    int64     `gorm:"column:amount;not null" json:"amount"`
	Reason    string    `gorm:"column:reason;type:varchar(30);not null" json:"reason"`
	ContextID uuid.UUID `gorm:"column:context_id;type:uuid;not null" json:"context_id"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
}

func (PointsLedgerEntry) TableName() string {
	return "PointsLedgerEntries"
}

func (e *PointsLedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.EntryID == uuid.Nil {
		e.EntryID = uuid.New()
	}
	return nil
}
