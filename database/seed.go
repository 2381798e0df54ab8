package database

import (
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"gorm.io/gorm"
)

// SeedDemoData fills an empty database with a small floor plan, menu and
// pantry. It does nothing when tables already exist.
func SeedDemoData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Table{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		utils.InfoLogger.Println("Seed skipped: tables already present")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i, seats := range []int{2, 4, 6, 2} {
			if err := tx.Create(&models.Table{Number: i + 1, Seats: seats}).Error; err != nil {
				return err
			}
		}

		burger := models.MenuItem{Name: "Burger", Category: "Main", Price: decimal.RequireFromString("12.50"), Available: true}
		pasta := models.MenuItem{Name: "Pasta Carbonara", Category: "Main", Price: decimal.RequireFromString("14.00"), Available: true}
		fries := models.MenuItem{Name: "Fries", Category: "Side", Price: decimal.RequireFromString("4.00"), Available: true}
		for _, m := range []*models.MenuItem{&burger, &pasta, &fries} {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}

		beef := pantryItem("Ground Beef", "Meat", "kg", "5", "1", "20", "9.80")
		buns := pantryItem("Burger Bun", "Bakery", "pcs", "40", "10", "100", "0.40")
		spaghetti := pantryItem("Spaghetti", "Dry Goods", "kg", "6", "2", "25", "2.10")
		eggs := pantryItem("Eggs", "Dairy", "pcs", "60", "24", "180", "0.25")
		potatoes := pantryItem("Potatoes", "Produce", "kg", "10", "3", "40", "1.20")
		for _, item := range []*models.InventoryItem{&beef, &buns, &spaghetti, &eggs, &potatoes} {
			if err := tx.Create(item).Error; err != nil {
				return err
			}
		}

		rules := []models.ConsumptionRule{
			{MenuItemID: burger.ID, InventoryItemID: beef.ID, Quantity: decimal.RequireFromString("0.2")},
			{MenuItemID: burger.ID, InventoryItemID: buns.ID, Quantity: decimal.NewFromInt(1)},
			{MenuItemID: pasta.ID, InventoryItemID: spaghetti.ID, Quantity: decimal.RequireFromString("0.15")},
			{MenuItemID: pasta.ID, InventoryItemID: eggs.ID, Quantity: decimal.NewFromInt(2)},
			{MenuItemID: fries.ID, InventoryItemID: potatoes.ID, Quantity: decimal.RequireFromString("0.25")},
		}
		if err := tx.Create(&rules).Error; err != nil {
			return err
		}

		utils.InfoLogger.Println("Demo data seeded")
		return nil
	})
}

func pantryItem(name, category, unit, stock, min, max, cost string) models.InventoryItem {
	return models.InventoryItem{
		Name:          name,
		Category:      category,
		Unit:          unit,
		CurrentStock:  decimal.RequireFromString(stock),
		MinStockLevel: decimal.RequireFromString(min),
		MaxStockLevel: decimal.RequireFromString(max),
		CostPerUnit:   decimal.RequireFromString(cost),
		Supplier:      "Local Wholesale",
	}
}
