package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// OrderLine is one checkout line. UnitPrice is the price the caller captured
// from the catalog; it is stored as-is.
type OrderLine struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Notes      string          `json:"notes"`
}

type OrderManagerOptions struct {
	Publisher Publisher
	Now       func() time.Time
}

// OrderManager owns the order state machine. Confirming an order commits its
// inventory through the ledger in the same transaction.
type OrderManager struct {
	db        *gorm.DB
	ledger    *Ledger
	locks     *KeyedMutex
	publisher Publisher
	now       func() time.Time
}

func NewOrderManager(db *gorm.DB, ledger *Ledger, opts OrderManagerOptions) *OrderManager {
	m := &OrderManager{
		db:        db,
		ledger:    ledger,
		locks:     NewKeyedMutex(),
		publisher: opts.Publisher,
		now:       opts.Now,
	}
	if m.publisher == nil {
		m.publisher = NopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Transitions returns the legal next states per state.
func (m *OrderManager) Transitions() map[models.OrderStatus][]models.OrderStatus {
	return models.OrderTransitions
}

// CreateOrder persists a pending order whose total is frozen from lines.
// Inventory is not touched until the order is confirmed.
func (m *OrderManager) CreateOrder(ctx context.Context, userID string, lines []OrderLine) (order *models.Order, err error) {
	ctx, span := startSpan(ctx, "orders.CreateOrder", attribute.Int("items.count", len(lines)))
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return nil, validationError("user id is required")
	}
	if len(lines) == 0 {
		return nil, validationError("an order needs at least one item")
	}

	items := make([]models.OrderItem, 0, len(lines))
	for i, line := range lines {
		switch {
		case line.MenuItemID == "":
			return nil, validationError("item %d: menu_item_id is required", i+1)
		case line.Quantity < 1:
			return nil, validationError("item %d: quantity must be at least 1", i+1)
		case line.UnitPrice.IsNegative():
			return nil, validationError("item %d: unit_price cannot be negative", i+1)
		case !line.UnitPrice.Equal(line.UnitPrice.Round(2)):
			return nil, validationError("item %d: unit_price has more than two decimals", i+1)
		}
		items = append(items, models.OrderItem{
			MenuItemID: line.MenuItemID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			Notes:      line.Notes,
		})
	}

	now := m.now().UTC()
	order = &models.Order{
		UserID:     userID,
		Status:     models.OrderPending,
		Total:      models.ComputeTotal(items),
		OrderItems: items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.Total.StringFixed(2),
	}).Info("Order created")
	m.publisher.Publish(ctx, newEvent(EventOrderCreated, order.ID, order))
	return order, nil
}

// AdvanceStatus moves an order along the state machine. The pending to
// confirmed edge debits inventory for every line; when any ingredient is
// short the order stays pending and nothing is debited.
func (m *OrderManager) AdvanceStatus(ctx context.Context, orderID string, next models.OrderStatus) (order *models.Order, err error) {
	ctx, span := startSpan(ctx, "orders.AdvanceStatus",
		attribute.String("order.id", orderID),
		attribute.String("order.next_status", string(next)))
	defer func() { endSpan(span, err) }()

	if !next.Valid() {
		return nil, validationError("unknown order status %q", next)
	}

	release, err := m.locks.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	var debits []Debit
	var touched []models.InventoryItem
	var previous models.OrderStatus
	for attempt := 1; ; attempt++ {
		order, previous, debits, touched, err = m.commitTransition(ctx, orderID, next)
		if errors.Is(err, ErrStaleVersion) && attempt < maxCommitAttempts {
			continue
		}
		break
	}
	if err != nil {
		if KindOf(err) == KindInsufficientStock {
			utils.InfoLogger.WithFields(logrus.Fields{
				"order_id": orderID,
				"reason":   err.Error(),
			}).Warn("Order confirmation rejected")
		}
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       order.Status,
	}).Info("Order status changed")

	release()
	m.ledger.publishDebits(ctx, order.ID, debits, touched)
	m.publisher.Publish(ctx, newEvent(EventOrderStatusChanged, order.ID, map[string]interface{}{
		"order":           order,
		"previous_status": previous,
	}))
	return order, nil
}

func (m *OrderManager) commitTransition(ctx context.Context, orderID string, next models.OrderStatus) (*models.Order, models.OrderStatus, []Debit, []models.InventoryItem, error) {
	current, err := m.loadOrder(m.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, "", nil, nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, "", nil, nil, transitionError("order", current.ID, current.Status, next)
	}

	var planned []Debit
	if next == models.OrderConfirmed {
		lineItems := make([]LineItem, len(current.OrderItems))
		for i, item := range current.OrderItems {
			lineItems[i] = LineItem{MenuItemID: item.MenuItemID, Quantity: item.Quantity}
		}
		var release func()
		planned, release, err = m.ledger.lockBatch(ctx, lineItems)
		if err != nil {
			return nil, "", nil, nil, err
		}
		defer release()
	}

	var debits []Debit
	var touched []models.InventoryItem
	var order *models.Order
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the status is re-read inside the transaction
		latest, err := m.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if latest.Version != current.Version {
			return ErrStaleVersion
		}

		now := m.now().UTC()
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND version = ?", latest.ID, latest.Status, latest.Version).
			Updates(map[string]interface{}{
				"status":     next,
				"version":    latest.Version + 1,
				"updated_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("update order: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrStaleVersion
		}

		if len(planned) > 0 {
			debits, touched, err = m.ledger.applyDebits(tx, planned, latest.ID, latest.UserID)
			if err != nil {
				return err
			}
		}

		latest.Status = next
		latest.Version++
		latest.UpdatedAt = now
		order = latest
		return nil
	})
	if err != nil {
		return nil, "", nil, nil, err
	}
	return order, current.Status, debits, touched, nil
}

// CancelOrder cancels a pending order. Once confirmed, inventory has been
// committed and the order can no longer be cancelled.
func (m *OrderManager) CancelOrder(ctx context.Context, orderID string, actor Actor) (order *models.Order, err error) {
	ctx, span := startSpan(ctx, "orders.CancelOrder", attribute.String("order.id", orderID))
	defer func() { endSpan(span, err) }()

	existing, err := m.loadOrder(m.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(existing.UserID) {
		return nil, &Error{Kind: KindForbidden, Message: "only the owner or staff can cancel this order"}
	}

	return m.AdvanceStatus(ctx, orderID, models.OrderCancelled)
}

func (m *OrderManager) loadOrder(db *gorm.DB, orderID string) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("OrderItems").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("order", orderID)
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	return &order, nil
}

func (m *OrderManager) GetOrder(ctx context.Context, orderID string, actor Actor) (*models.Order, error) {
	order, err := m.loadOrder(m.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(order.UserID) {
		return nil, &Error{Kind: KindForbidden, Message: "access denied"}
	}
	return order, nil
}

func (m *OrderManager) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := m.db.WithContext(ctx).
		Preload("OrderItems").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ListOrders returns every order, optionally filtered by status.
func (m *OrderManager) ListOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	query := m.db.WithContext(ctx).Preload("OrderItems").Order("created_at desc")
	if status != "" {
		if !status.Valid() {
			return nil, validationError("unknown order status %q", status)
		}
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
