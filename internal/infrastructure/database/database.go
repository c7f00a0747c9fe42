package database

import (
	"auction-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB from DSN (Postgres or pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind PgBouncer-style poolers.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
}

// Models lists every table owned by the auction engine, leaves first.
func Models() []interface{} {
	return []interface{}{
		&domain.PointsAccount{},
		&domain.PointsLedgerEntry{},
		&domain.PointsLock{},
		&domain.InventoryUnit{},
		&domain.Auction{},
		&domain.Bid{},
		&domain.ProxyBid{},
		&domain.AuctionEvent{},
		&domain.DispatchLease{},
	}
}

// AutoMigrate creates or updates the auction engine tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
