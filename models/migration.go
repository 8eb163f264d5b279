package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates or alters every table. Reports precede items so the foreign key can be added.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Menu{},
		&User{},
		&ClosingReport{}, &ClosingMenuItem{},
	)
}
