package points

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

func setupPointsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.PointsAccount{}, &domain.PointsLedgerEntry{}, &domain.PointsLock{}))
	return &Service{Ledger: GormLedger{}}, db
}

func deposit(t *testing.T, db *gorm.DB, userID uuid.UUID, amount int64) {
	require.NoError(t, GormLedger{}.Deposit(context.Background(), db, userID, amount))
}

func TestLock_CreatesThenResizes(t *testing.T) {
	svc, db := setupPointsTest(t)
	ctx := context.Background()
	user, auction := uuid.New(), uuid.New()
	deposit(t, db, user, 100)

	first, err := svc.Lock(ctx, db, user, 40, auction)
	require.NoError(t, err)
	assert.Equal(t, domain.LockStatusActive, first.Status)

	// the lock on the same context is replaced, not added to
	second, err := svc.Lock(ctx, db, user, 90, auction)
	require.NoError(t, err)
	assert.Equal(t, first.LockID, second.LockID)
	assert.Equal(t, int64(90), second.Amount)

	spendable, err := svc.Spendable(ctx, db, user)
	require.NoError(t, err)
	assert.Equal(t, int64(10), spendable)
}

func TestLock_InsufficientAcrossContexts(t *testing.T) {
	svc, db := setupPointsTest(t)
	ctx := context.Background()
	user := uuid.New()
	deposit(t, db, user, 100)

	_, err := svc.Lock(ctx, db, user, 60, uuid.New())
	require.NoError(t, err)
	_, err = svc.Lock(ctx, db, user, 50, uuid.New())
	var fe *domain.InsufficientFundsError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, int64(40), fe.Spendable)
	assert.Equal(t, int64(50), fe.Required)
}

func TestLock_UnknownUserHasNothing(t *testing.T) {
	svc, db := setupPointsTest(t)
	_, err := svc.Lock(context.Background(), db, uuid.New(), 1, uuid.New())
	var fe *domain.InsufficientFundsError
	assert.ErrorAs(t, err, &fe)
}

func TestLock_RejectsNonPositive(t *testing.T) {
	svc, db := setupPointsTest(t)
	_, err := svc.Lock(context.Background(), db, uuid.New(), 0, uuid.New())
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRelease_Idempotent(t *testing.T) {
	svc, db := setupPointsTest(t)
	ctx := context.Background()
	user := uuid.New()
	deposit(t, db, user, 100)
	lock, err := svc.Lock(ctx, db, user, 30, uuid.New())
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, db, lock.LockID))
	require.NoError(t, svc.Release(ctx, db, lock.LockID))

	spendable, err := svc.Spendable(ctx, db, user)
	require.NoError(t, err)
	assert.Equal(t, int64(100), spendable)
}

func TestCapture_DebitsOnce(t *testing.T) {
	svc, db := setupPointsTest(t)
	ctx := context.Background()
	user, auction := uuid.New(), uuid.New()
	deposit(t, db, user, 100)
	lock, err := svc.Lock(ctx, db, user, 30, auction)
	require.NoError(t, err)

	captured, err := svc.Capture(ctx, db, lock.LockID)
	require.NoError(t, err)
	assert.Equal(t, domain.LockStatusCaptured, captured.Status)

	var acct domain.PointsAccount
	require.NoError(t, db.Where("user_id = ?", user).First(&acct).Error)
	assert.Equal(t, int64(70), acct.Balance)

	var entries []domain.PointsLedgerEntry
	require.NoError(t, db.Where("user_id = ? AND reason = ?", user, ReasonAuctionCapture).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-30), entries[0].Amount)
	assert.Equal(t, auction, entries[0].ContextID)

	_, err = svc.Capture(ctx, db, lock.LockID)
	var se *domain.StateError
	assert.ErrorAs(t, err, &se)

	err = svc.Release(ctx, db, lock.LockID)
	assert.ErrorAs(t, err, &se, "a captured lock cannot be released")
}

func TestReleaseContext_KeepsOneHolder(t *testing.T) {
	svc, db := setupPointsTest(t)
	ctx := context.Background()
	auction := uuid.New()
	keep, other := uuid.New(), uuid.New()
	deposit(t, db, keep, 100)
	deposit(t, db, other, 100)
	_, err := svc.Lock(ctx, db, keep, 10, auction)
	require.NoError(t, err)
	_, err = svc.Lock(ctx, db, other, 10, auction)
	require.NoError(t, err)

	n, err := svc.ReleaseContext(ctx, db, auction, keep)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	kept, err := svc.ActiveLock(ctx, db, keep, auction)
	require.NoError(t, err)
	assert.NotNil(t, kept)
	gone, err := svc.ActiveLock(ctx, db, other, auction)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
