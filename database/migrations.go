package database

import (
	"gorm.io/gorm"

	"rescuehub/logger"
	"rescuehub/models"
)

// Models lists every table owned by the server, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.RescueTask{},
		&models.TaskClaim{},
	}
}

// Migrate creates or updates the server schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		logger.Error("[database] migration failed: %v", err)
		return err
	}
	logger.Info("[database] schema up to date")
	return nil
}
