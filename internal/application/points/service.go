package points

import (
	"context"
	"errors"

	"auction-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger is the points ledger collaborator. Both calls run inside the caller's transaction;
// Balance must serialize concurrent callers for the same user (row lock or equivalent).
type Ledger interface {
	Balance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64, contextID uuid.UUID) error
}

// Service reserves, releases and captures points. It never opens its own transaction:
// every call joins the bid or settlement transaction it is given.
type Service struct {
	Ledger Ledger
}

// Lock reserves amount for userID against contextID, creating the ACTIVE lock or resizing
// the one already held for that context.
func (s *Service) Lock(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64, contextID uuid.UUID) (*domain.PointsLock, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("lock amount must be positive")
	}
	balance, err := s.Ledger.Balance(ctx, tx, userID)
	if err != nil {
		return nil, domain.Internal("points: balance", err)
	}

	existing, err := activeLock(tx, userID, contextID)
	if err != nil {
		return nil, err
	}

	// The lock for this context is being replaced, so it does not count against the user.
	reserved, err := reservedExcept(tx, userID, contextID)
	if err != nil {
		return nil, err
	}
	spendable := balance - reserved
	if spendable < amount {
		return nil, &domain.InsufficientFundsError{UserID: userID, Required: amount, Spendable: spendable}
	}

	if existing != nil {
		existing.Amount = amount
		if err := tx.Save(existing).Error; err != nil {
			return nil, domain.Internal("points: resize lock", err)
		}
		return existing, nil
	}
	lock := &domain.PointsLock{
		UserID:    userID,
		Amount:    amount,
		ContextID: contextID,
		Status:    domain.LockStatusActive,
	}
	if err := tx.Create(lock).Error; err != nil {
		return nil, domain.Internal("points: create lock", err)
	}
	return lock, nil
}

// Spendable returns balance minus every ACTIVE lock the user holds.
func (s *Service) Spendable(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	balance, err := s.Ledger.Balance(ctx, tx, userID)
	if err != nil {
		return 0, domain.Internal("points: balance", err)
	}
	reserved, err := reservedExcept(tx, userID, uuid.Nil)
	if err != nil {
		return 0, err
	}
	return balance - reserved, nil
}

// Release marks the lock RELEASED. Releasing twice is a no-op; a captured lock cannot be released.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, lockID uuid.UUID) error {
	var lock domain.PointsLock
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("lock_id = ?", lockID).First(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewValidationError("points lock %s not found", lockID)
		}
		return domain.Internal("points: load lock", err)
	}
	switch lock.Status {
	case domain.LockStatusReleased:
		return nil
	case domain.LockStatusCaptured:
		return domain.NewStateError("points lock %s already captured", lockID)
	}
	return setStatus(tx, &lock, domain.LockStatusReleased)
}

// ReleaseFor releases userID's ACTIVE lock on contextID, if any.
func (s *Service) ReleaseFor(ctx context.Context, tx *gorm.DB, userID, contextID uuid.UUID) error {
	lock, err := activeLock(tx, userID, contextID)
	if err != nil || lock == nil {
		return err
	}
	return setStatus(tx, lock, domain.LockStatusReleased)
}

// ReleaseContext releases every ACTIVE lock on contextID except the one held by keep.
func (s *Service) ReleaseContext(ctx context.Context, tx *gorm.DB, contextID uuid.UUID, keep uuid.UUID) (int64, error) {
	res := tx.Model(&domain.PointsLock{}).
		Where("context_id = ? AND status = ? AND user_id <> ?", contextID, domain.LockStatusActive, keep).
		Update("status", domain.LockStatusReleased)
	if res.Error != nil {
		return 0, domain.Internal("points: release context", res.Error)
	}
	return res.RowsAffected, nil
}

// Capture converts an ACTIVE lock into a real debit. Only settlement calls it.
func (s *Service) Capture(ctx context.Context, tx *gorm.DB, lockID uuid.UUID) (*domain.PointsLock, error) {
	var lock domain.PointsLock
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("lock_id = ?", lockID).First(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewValidationError("points lock %s not found", lockID)
		}
		return nil, domain.Internal("points: load lock", err)
	}
	if lock.Status != domain.LockStatusActive {
		return nil, domain.NewStateError("points lock %s is %s, cannot capture", lockID, lock.Status)
	}
	if err := setStatus(tx, &lock, domain.LockStatusCaptured); err != nil {
		return nil, err
	}
	if err := s.Ledger.Debit(ctx, tx, lock.UserID, lock.Amount, lock.ContextID); err != nil {
		return nil, domain.Internal("points: debit", err)
	}
	return &lock, nil
}

// ActiveLock returns userID's ACTIVE lock on contextID, or nil.
func (s *Service) ActiveLock(ctx context.Context, tx *gorm.DB, userID, contextID uuid.UUID) (*domain.PointsLock, error) {
	return activeLock(tx, userID, contextID)
}

func activeLock(tx *gorm.DB, userID, contextID uuid.UUID) (*domain.PointsLock, error) {
	var lock domain.PointsLock
	err := tx.Where("user_id = ? AND context_id = ? AND status = ?", userID, contextID, domain.LockStatusActive).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Internal("points: load active lock", err)
	}
	return &lock, nil
}

func reservedExcept(tx *gorm.DB, userID, contextID uuid.UUID) (int64, error) {
	var sum int64
	err := tx.Model(&domain.PointsLock{}).
		Where("user_id = ? AND status = ? AND context_id <> ?", userID, domain.LockStatusActive, contextID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, domain.Internal("points: sum locks", err)
	}
	return sum, nil
}

func setStatus(tx *gorm.DB, lock *domain.PointsLock, status string) error {
	lock.Status = status
	if err := tx.Model(lock).Update("status", status).Error; err != nil {
		return domain.Internal("points: update lock status", err)
	}
	return nil
}
