package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderTransitions is the order state machine. Clients render their status
// options from it instead of keeping their own copy.
//
// Cancellation is only reachable from pending: inventory is committed on
// confirmation and there is no compensating credit path.
var OrderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderPreparing},
	OrderPreparing: {OrderReady},
	OrderReady:     {OrderDelivered},
	OrderDelivered: {},
	OrderCancelled: {},
}

func (s OrderStatus) Valid() bool {
	_, ok := OrderTransitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(OrderTransitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range OrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID         string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Status     OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Version    int64           `gorm:"not null;default:0" json:"-"`
	OrderItems []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// ComputeTotal sums quantity x unit price over the items.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
