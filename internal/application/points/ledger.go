package points

import (
	"context"
	"errors"

	"auction-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ReasonAuctionCapture = "AUCTION_CAPTURE"
	ReasonDeposit        = "DEPOSIT"
)

// GormLedger keeps balances in the same database as the auction tables, so a capture commits
// or rolls back together with settlement.
type GormLedger struct{}

// Balance locks the user's account row for the rest of the transaction. A user without an
// account has a zero balance.
func (GormLedger) Balance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var acct domain.PointsAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func (GormLedger) Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64, contextID uuid.UUID) error {
	var acct domain.PointsAccount
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&acct).Error; err != nil {
		return err
	}
	if acct.Balance < amount {
		return &domain.InsufficientFundsError{UserID: userID, Required: amount, Spendable: acct.Balance}
	}
	if err := tx.Model(&acct).Update("balance", gorm.Expr("balance - ?", amount)).Error; err != nil {
		return err
	}
	return tx.Create(&domain.PointsLedgerEntry{
		UserID:    userID,
		Amount:    -amount,
		Reason:    ReasonAuctionCapture,
		ContextID: contextID,
	}).Error
}

// Deposit credits a user's account, creating it on first use.
func (GormLedger) Deposit(ctx context.Context, db *gorm.DB, userID uuid.UUID, amount int64) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct domain.PointsAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&acct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			acct = domain.PointsAccount{UserID: userID, Balance: amount}
			if err := tx.Create(&acct).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else if err := tx.Model(&acct).Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return err
		}
		return tx.Create(&domain.PointsLedgerEntry{
			UserID:    userID,
			Amount:    amount,
			Reason:    ReasonDeposit,
			ContextID: uuid.Nil,
		}).Error
	})
}
