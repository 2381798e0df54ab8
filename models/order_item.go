package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderItem struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID string `gorm:"type:varchar(36);not null;index" json:"order_id"`
	// Omitting Order field from JSON to avoid recursive nesting
	Order      *Order          `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	MenuItemID string          `gorm:"type:varchar(36);not null;index" json:"menu_item_id"`
	Name       string          `gorm:"type:varchar(255)" json:"name,omitempty"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Notes      string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
