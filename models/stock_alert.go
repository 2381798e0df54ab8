package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AlertPriority string

const (
	AlertHigh   AlertPriority = "high"
	AlertMedium AlertPriority = "medium"
)

// mediumAlertFactor widens the threshold for early warnings.
var mediumAlertFactor = decimal.NewFromFloat(1.5)

// StockAlert is derived from the current stock of an item and never stored.
type StockAlert struct {
	ID              string          `json:"id"`
	InventoryItemID string          `json:"inventory_item_id"`
	ItemName        string          `json:"item_name"`
	Priority        AlertPriority   `json:"priority"`
	Message         string          `json:"message"`
	CurrentStock    decimal.Decimal `json:"current_stock"`
	MinStockLevel   decimal.Decimal `json:"min_stock_level"`
	Unit            string          `json:"unit"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// AlertPriorityFor returns the alert priority for item, or false when the
// item is above both thresholds.
func AlertPriorityFor(item InventoryItem) (AlertPriority, bool) {
	switch {
	case item.CurrentStock.LessThanOrEqual(item.MinStockLevel):
		return AlertHigh, true
	case item.CurrentStock.LessThanOrEqual(item.MinStockLevel.Mul(mediumAlertFactor)):
		return AlertMedium, true
	}
	return "", false
}

// AlertFor builds the alert view for item, or nil when no alert applies.
func AlertFor(item InventoryItem, now time.Time) *StockAlert {
	priority, ok := AlertPriorityFor(item)
	if !ok {
		return nil
	}

	var message string
	if priority == AlertHigh {
		message = fmt.Sprintf("%s is at or below its minimum: %s %s left (minimum %s %s)",
			item.Name, item.CurrentStock.String(), item.Unit, item.MinStockLevel.String(), item.Unit)
	} else {
		message = fmt.Sprintf("%s is running low: %s %s left (minimum %s %s)",
			item.Name, item.CurrentStock.String(), item.Unit, item.MinStockLevel.String(), item.Unit)
	}

	return &StockAlert{
		ID:              uuid.NewString(),
		InventoryItemID: item.ID,
		ItemName:        item.Name,
		Priority:        priority,
		Message:         message,
		CurrentStock:    item.CurrentStock,
		MinStockLevel:   item.MinStockLevel,
		Unit:            item.Unit,
		GeneratedAt:     now,
	}
}
