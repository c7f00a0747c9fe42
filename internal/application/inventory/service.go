package inventory

import (
	"context"
	"errors"

	"auction-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransferRequest describes the lot unit that changes hands at settlement.
type TransferRequest struct {
	AuctionID uuid.UUID
	LotRef    string
	SellerID  uuid.UUID
	WinnerID  uuid.UUID
}

// Transferer is the inventory collaborator invoked from settlement. Both calls run inside
// the settlement transaction; an error rolls the whole settlement back.
type Transferer interface {
	Transfer(ctx context.Context, tx *gorm.DB, req TransferRequest) (*domain.InventoryUnit, error)
	ReturnUnsold(ctx context.Context, tx *gorm.DB, auctionID uuid.UUID, lotRef string, sellerID uuid.UUID) (*domain.InventoryUnit, error)
}

// GormInventory mints InventoryUnit rows with a per-lot sequential serial.
type GormInventory struct{}

func (GormInventory) Transfer(ctx context.Context, tx *gorm.DB, req TransferRequest) (*domain.InventoryUnit, error) {
	if req.LotRef == "" {
		return nil, errors.New("inventory: lot reference is required")
	}
	if req.WinnerID == uuid.Nil {
		return nil, errors.New("inventory: winner is required")
	}
	return mint(tx, req.AuctionID, req.LotRef, req.WinnerID, domain.UnitStatusOwned)
}

func (GormInventory) ReturnUnsold(ctx context.Context, tx *gorm.DB, auctionID uuid.UUID, lotRef string, sellerID uuid.UUID) (*domain.InventoryUnit, error) {
	if lotRef == "" {
		return nil, errors.New("inventory: lot reference is required")
	}
	return mint(tx, auctionID, lotRef, sellerID, domain.UnitStatusUnsold)
}

// ListOwned returns the units held by ownerID, oldest first.
func ListOwned(ctx context.Context, db *gorm.DB, ownerID uuid.UUID) ([]domain.InventoryUnit, error) {
	var units []domain.InventoryUnit
	err := db.WithContext(ctx).Where("owner_id = ? AND status = ?", ownerID, domain.UnitStatusOwned).
		Order(`"createdAt" ASC`).Find(&units).Error
	return units, err
}

func mint(tx *gorm.DB, auctionID uuid.UUID, lotRef string, ownerID uuid.UUID, status string) (*domain.InventoryUnit, error) {
	var last domain.InventoryUnit
	serial := int64(1)
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lot_ref = ?", lotRef).
		Order("serial DESC").
		First(&last).Error
	switch {
	case err == nil:
		serial = last.Serial + 1
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	unit := &domain.InventoryUnit{
		LotRef:    lotRef,
		Serial:    serial,
		OwnerID:   ownerID,
		Status:    status,
		AuctionID: &auctionID,
	}
	if err := tx.Create(unit).Error; err != nil {
		return nil, err
	}
	return unit, nil
}
