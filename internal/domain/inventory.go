package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	UnitStatusOwned  = "OWNED"
	UnitStatusUnsold = "UNSOLD"
)

// InventoryUnit is one physical unit of a lot. Serial is sequential per lot.
type InventoryUnit struct {
	UnitID    uuid.UUID  `gorm:"column:unit_id;type:uuid;primaryKey" json:"unit_id"`
	LotRef    string     `gorm:"column:lot_ref;not null;uniqueIndex:idx_unit_lot_serial" json:"lot_ref"`
	Serial    int64      `gorm:"column:serial;not null;uniqueIndex:idx_unit_lot_serial" json:"serial"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Status    string     `gorm:"column:status;type:varchar(10);not null" json:"status"`
	AuctionID *uuid.UUID `gorm:"column:auction_id;type:uuid" json:"auction_id"`
	CreatedAt time.Time  `gorm:"column:createdAt" json:"createdAt"`
}

func (InventoryUnit) TableName() string {
	return "InventoryUnits"
}

func (u *InventoryUnit) BeforeCreate(tx *gorm.DB) error {
	if u.UnitID == uuid.Nil {
		u.UnitID = uuid.New()
	}
	return nil
}
