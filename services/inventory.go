package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"gorm.io/gorm"
)

const defaultMovementLimit = 100

type RuleInput struct {
	InventoryItemID string          `json:"inventory_item_id"`
	Quantity        decimal.Decimal `json:"quantity"`
}

func (l *Ledger) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := l.db.WithContext(ctx).Order("category asc, name asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	return items, nil
}

func (l *Ledger) GetItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := l.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("inventory item", id)
		}
		return nil, fmt.Errorf("load inventory item: %w", err)
	}
	return &item, nil
}

// CreateItem registers a new ingredient. Its opening stock is the only stock
// change that does not go through Restock or a debit.
func (l *Ledger) CreateItem(ctx context.Context, item models.InventoryItem) (*models.InventoryItem, error) {
	switch {
	case item.Name == "":
		return nil, validationError("name is required")
	case item.Unit == "":
		return nil, validationError("unit is required")
	case item.MinStockLevel.IsNegative():
		return nil, validationError("min_stock_level cannot be negative")
	case !item.MaxStockLevel.IsPositive():
		return nil, validationError("max_stock_level must be positive")
	case item.MinStockLevel.GreaterThan(item.MaxStockLevel):
		return nil, validationError("min_stock_level cannot exceed max_stock_level")
	case item.CurrentStock.IsNegative():
		return nil, validationError("current_stock cannot be negative")
	case item.CurrentStock.GreaterThan(item.MaxStockLevel):
		return nil, validationError("current_stock cannot exceed max_stock_level")
	case item.CostPerUnit.IsNegative():
		return nil, validationError("cost_per_unit cannot be negative")
	}

	item.ID = ""
	item.Version = 0
	item.LastUpdated = l.now().UTC()
	if err := l.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("create inventory item: %w", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"inventory_item_id": item.ID,
		"name":              item.Name,
		"stock":             item.CurrentStock.String(),
	}).Info("Inventory item created")
	return &item, nil
}

// SetConsumptionRules replaces every rule of a menu item with rules.
func (l *Ledger) SetConsumptionRules(ctx context.Context, menuItemID string, rules []RuleInput) ([]models.ConsumptionRule, error) {
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r.InventoryItemID == "" {
			return nil, validationError("inventory_item_id is required")
		}
		if !r.Quantity.IsPositive() {
			return nil, validationError("quantity for inventory item %s must be positive", r.InventoryItemID)
		}
		if _, dup := seen[r.InventoryItemID]; dup {
			return nil, validationError("inventory item %s listed twice", r.InventoryItemID)
		}
		seen[r.InventoryItemID] = struct{}{}
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var menu models.MenuItem
		if err := tx.Select("id").First(&menu, "id = ?", menuItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("menu item", menuItemID)
			}
			return fmt.Errorf("load menu item: %w", err)
		}

		for _, r := range rules {
			var count int64
			if err := tx.Model(&models.InventoryItem{}).Where("id = ?", r.InventoryItemID).Count(&count).Error; err != nil {
				return fmt.Errorf("check inventory item: %w", err)
			}
			if count == 0 {
				return notFoundError("inventory item", r.InventoryItemID)
			}
		}

		if err := tx.Where("menu_item_id = ?", menuItemID).Delete(&models.ConsumptionRule{}).Error; err != nil {
			return fmt.Errorf("clear consumption rules: %w", err)
		}
		for _, r := range rules {
			if err := tx.Create(&models.ConsumptionRule{
				MenuItemID:      menuItemID,
				InventoryItemID: r.InventoryItemID,
				Quantity:        r.Quantity,
			}).Error; err != nil {
				return fmt.Errorf("create consumption rule: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{"menu_item_id": menuItemID, "rules": len(rules)}).Info("Consumption rules replaced")
	return l.ConsumptionRules(ctx, menuItemID)
}

func (l *Ledger) ConsumptionRules(ctx context.Context, menuItemID string) ([]models.ConsumptionRule, error) {
	var rules []models.ConsumptionRule
	if err := l.db.WithContext(ctx).
		Preload("InventoryItem").
		Where("menu_item_id = ?", menuItemID).
		Order("inventory_item_id asc").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("load consumption rules: %w", err)
	}
	return rules, nil
}

// ListMovements returns the newest stock movements, optionally for one item.
func (l *Ledger) ListMovements(ctx context.Context, itemID string, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultMovementLimit
	}

	query := l.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if itemID != "" {
		query = query.Where("inventory_item_id = ?", itemID)
	}

	var movements []models.StockMovement
	if err := query.Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	return movements, nil
}
