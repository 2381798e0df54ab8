package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem is an ingredient stock level. CurrentStock is only mutated by
// the ledger and never goes below zero.
type InventoryItem struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Category      string          `gorm:"type:varchar(100)" json:"category"`
	CurrentStock  decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"current_stock"`
	MinStockLevel decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"min_stock_level"`
	MaxStockLevel decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"max_stock_level"`
	Unit          string          `gorm:"type:varchar(20);not null" json:"unit"`
	CostPerUnit   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"cost_per_unit"`
	Supplier      string          `gorm:"type:varchar(255)" json:"supplier"`
	Version       int64           `gorm:"not null;default:0" json:"-"`
	LastUpdated   time.Time       `gorm:"not null" json:"last_updated"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (i *InventoryItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.LastUpdated.IsZero() {
		i.LastUpdated = time.Now().UTC()
	}
	return nil
}

// ConsumptionRule says how much of an inventory item one unit of a menu item uses.
type ConsumptionRule struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	MenuItemID      string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_rule_menu_inventory" json:"menu_item_id"`
	InventoryItemID string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_rule_menu_inventory" json:"inventory_item_id"`
	InventoryItem   *InventoryItem  `gorm:"foreignKey:InventoryItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"inventory_item,omitempty"`
	Quantity        decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"quantity"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (r *ConsumptionRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

// StockMovement is an append-only audit row written with every ledger mutation.
type StockMovement struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	InventoryItemID string          `gorm:"type:varchar(36);not null;index" json:"inventory_item_id"`
	MovementType    MovementType    `gorm:"type:varchar(10);not null" json:"movement_type"`
	Quantity        decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"quantity"`
	StockAfter      decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"stock_after"`
	Reason          string          `gorm:"type:varchar(50);not null" json:"reason"`
	Reference       string          `gorm:"type:varchar(64);index" json:"reference,omitempty"`
	UserID          string          `gorm:"type:varchar(64)" json:"user_id,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;index" json:"created_at"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
