package database

import (
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema of every entity.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Table{},
		&models.Reservation{},
		&models.MenuItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.InventoryItem{},
		&models.ConsumptionRule{},
		&models.StockMovement{},
	)
	if err != nil {
		utils.ErrorLogger.Printf("Failed to AutoMigrate: %v", err)
		return err
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}
