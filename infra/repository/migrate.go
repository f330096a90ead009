package repository

import "gorm.io/gorm"

// AutoMigrate creates or updates the ledger tables. Production databases are
// migrated with the SQL files in infra/migrations; this is used for SQLite.
func AutoMigrate(db *gorm.DB) error {
	return WrapError(func() error {
		return db.AutoMigrate(Models()...)
	})
}
