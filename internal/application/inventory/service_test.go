package inventory

import (
	"context"
	"testing"

	"auction-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupInventoryTest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.InventoryUnit{}))
	return db
}

func TestTransfer_AssignsSequentialSerials(t *testing.T) {
	db := setupInventoryTest(t)
	ctx := context.Background()
	inv := GormInventory{}
	seller, winner := uuid.New(), uuid.New()

	for want := int64(1); want <= 3; want++ {
		unit, err := inv.Transfer(ctx, db, TransferRequest{AuctionID: uuid.New(), LotRef: "lot-a", SellerID: seller, WinnerID: winner})
		require.NoError(t, err)
		assert.Equal(t, want, unit.Serial)
		assert.Equal(t, domain.UnitStatusOwned, unit.Status)
	}

	other, err := inv.Transfer(ctx, db, TransferRequest{AuctionID: uuid.New(), LotRef: "lot-b", SellerID: seller, WinnerID: winner})
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Serial, "serials are per lot")

	owned, err := ListOwned(ctx, db, winner)
	require.NoError(t, err)
	assert.Len(t, owned, 4)
}

func TestReturnUnsold_GoesToSeller(t *testing.T) {
	db := setupInventoryTest(t)
	seller := uuid.New()
	unit, err := GormInventory{}.ReturnUnsold(context.Background(), db, uuid.New(), "lot-a", seller)
	require.NoError(t, err)
	assert.Equal(t, seller, unit.OwnerID)
	assert.Equal(t, domain.UnitStatusUnsold, unit.Status)

	owned, err := ListOwned(context.Background(), db, seller)
	require.NoError(t, err)
	assert.Empty(t, owned, "unsold units are not listed as owned")
}

func TestTransfer_RequiresWinner(t *testing.T) {
	db := setupInventoryTest(t)
	_, err := GormInventory{}.Transfer(context.Background(), db, TransferRequest{AuctionID: uuid.New(), LotRef: "lot-a"})
	assert.Error(t, err)
}
