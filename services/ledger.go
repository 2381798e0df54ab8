package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	ReasonOrderConfirmed = "order_confirmed"
	ReasonRestock        = "restock"
)

// LineItem is one (menu item, quantity) pair to be expanded through the
// consumption rules.
type LineItem struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

// Debit is the aggregated amount taken from one inventory item.
type Debit struct {
	InventoryItemID string          `json:"inventory_item_id"`
	Name            string          `json:"name,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	StockAfter      decimal.Decimal `json:"stock_after"`
}

type RestockOptions struct {
	// Clamp raises stock to the maximum and reports the rest as Excess
	// instead of rejecting the restock.
	Clamp   bool
	ActorID string
}

type RestockResult struct {
	Item    *models.InventoryItem `json:"item"`
	Applied decimal.Decimal       `json:"applied"`
	Excess  decimal.Decimal       `json:"excess"`
}

type LedgerOptions struct {
	Publisher Publisher
	Now       func() time.Time
}

// Ledger is the only writer of inventory stock levels.
type Ledger struct {
	db        *gorm.DB
	locks     *KeyedMutex
	publisher Publisher
	now       func() time.Time
}

func NewLedger(db *gorm.DB, opts LedgerOptions) *Ledger {
	l := &Ledger{
		db:        db,
		locks:     NewKeyedMutex(),
		publisher: opts.Publisher,
		now:       opts.Now,
	}
	if l.publisher == nil {
		l.publisher = NopPublisher{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// DebitForOrder expands items into per-ingredient debits and applies all of
// them or none. Menu items without consumption rules consume nothing.
func (l *Ledger) DebitForOrder(ctx context.Context, orderRef string, items []LineItem) (debits []Debit, err error) {
	ctx, span := startSpan(ctx, "ledger.DebitForOrder",
		attribute.String("order.id", orderRef),
		attribute.Int("items.count", len(items)))
	defer func() { endSpan(span, err) }()

	planned, release, err := l.lockBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	defer release()

	if len(planned) == 0 {
		return []Debit{}, nil
	}

	var touched []models.InventoryItem
	for attempt := 1; ; attempt++ {
		err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			debits, touched, txErr = l.applyDebits(tx, planned, orderRef, "")
			return txErr
		})
		if errors.Is(err, ErrStaleVersion) && attempt < maxCommitAttempts {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	release()
	l.publishDebits(ctx, orderRef, debits, touched)
	return debits, nil
}

// lockBatch plans the debits for items and acquires every affected
// inventory item in ascending id order. The caller must invoke release.
func (l *Ledger) lockBatch(ctx context.Context, items []LineItem) ([]Debit, func(), error) {
	planned, err := l.planDebits(ctx, items)
	if err != nil {
		return nil, nil, err
	}

	keys := make([]string, len(planned))
	for i, d := range planned {
		keys[i] = d.InventoryItemID
	}
	release, err := l.locks.LockAll(ctx, keys)
	if err != nil {
		return nil, nil, err
	}
	return planned, release, nil
}

// planDebits aggregates the consumption of items per inventory item, keeping
// the order in which ingredients first appear.
func (l *Ledger) planDebits(ctx context.Context, items []LineItem) ([]Debit, error) {
	menuIDs := make([]string, 0, len(items))
	for _, item := range items {
		if item.MenuItemID == "" {
			return nil, validationError("menu_item_id is required")
		}
		if item.Quantity < 1 {
			return nil, validationError("quantity for menu item %s must be at least 1", item.MenuItemID)
		}
		menuIDs = append(menuIDs, item.MenuItemID)
	}
	if len(menuIDs) == 0 {
		return nil, nil
	}

	var rules []models.ConsumptionRule
	if err := l.db.WithContext(ctx).
		Where("menu_item_id IN ?", uniqueSorted(menuIDs)).
		Order("inventory_item_id asc").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("load consumption rules: %w", err)
	}

	byMenu := make(map[string][]models.ConsumptionRule)
	for _, r := range rules {
		byMenu[r.MenuItemID] = append(byMenu[r.MenuItemID], r)
	}

	index := make(map[string]int)
	var planned []Debit
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		for _, r := range byMenu[item.MenuItemID] {
			amount := r.Quantity.Mul(qty)
			if i, ok := index[r.InventoryItemID]; ok {
				planned[i].Amount = planned[i].Amount.Add(amount)
				continue
			}
			index[r.InventoryItemID] = len(planned)
			planned = append(planned, Debit{InventoryItemID: r.InventoryItemID, Amount: amount})
		}
	}
	return planned, nil
}

// applyDebits checks every planned debit against the latest committed stock
// before writing any of them. It must run inside a transaction while the
// items are locked.
func (l *Ledger) applyDebits(tx *gorm.DB, planned []Debit, reference, userID string) ([]Debit, []models.InventoryItem, error) {
	ids := make([]string, len(planned))
	for i, d := range planned {
		ids[i] = d.InventoryItemID
	}

	var rows []models.InventoryItem
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("load inventory items: %w", err)
	}
	byID := make(map[string]models.InventoryItem, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	for _, d := range planned {
		item, ok := byID[d.InventoryItemID]
		if !ok {
			return nil, nil, notFoundError("inventory item", d.InventoryItemID)
		}
		if item.CurrentStock.LessThan(d.Amount) {
			return nil, nil, &Error{
				Kind: KindInsufficientStock,
				Message: fmt.Sprintf("insufficient stock of %s: %s %s required, %s %s available",
					item.Name, d.Amount.String(), item.Unit, item.CurrentStock.String(), item.Unit),
				Details: map[string]interface{}{
					"inventory_item_id": item.ID,
					"name":              item.Name,
					"required":          d.Amount,
					"available":         item.CurrentStock,
					"unit":              item.Unit,
				},
			}
		}
	}

	now := l.now().UTC()
	applied := make([]Debit, 0, len(planned))
	touched := make([]models.InventoryItem, 0, len(planned))
	for _, d := range planned {
		item := byID[d.InventoryItemID]
		after := item.CurrentStock.Sub(d.Amount)

		if err := l.writeStock(tx, &item, after, now); err != nil {
			return nil, nil, err
		}
		if err := tx.Create(&models.StockMovement{
			InventoryItemID: item.ID,
			MovementType:    models.MovementOut,
			Quantity:        d.Amount,
			StockAfter:      after,
			Reason:          ReasonOrderConfirmed,
			Reference:       reference,
			UserID:          userID,
			CreatedAt:       now,
		}).Error; err != nil {
			return nil, nil, fmt.Errorf("record stock movement: %w", err)
		}

		applied = append(applied, Debit{InventoryItemID: item.ID, Name: item.Name, Amount: d.Amount, StockAfter: after})
		touched = append(touched, item)
	}
	return applied, touched, nil
}

// writeStock stores the new stock level if nobody else committed against
// the item since it was read.
func (l *Ledger) writeStock(tx *gorm.DB, item *models.InventoryItem, stock decimal.Decimal, now time.Time) error {
	if stock.IsNegative() {
		return &Error{
			Kind:    KindInsufficientStock,
			Message: fmt.Sprintf("stock of %s cannot go below zero", item.Name),
			Details: map[string]interface{}{"inventory_item_id": item.ID},
		}
	}

	result := tx.Model(&models.InventoryItem{}).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Updates(map[string]interface{}{
			"current_stock": stock,
			"version":       item.Version + 1,
			"last_updated":  now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return fmt.Errorf("update stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}

	item.CurrentStock = stock
	item.Version++
	item.LastUpdated = now
	item.UpdatedAt = now
	return nil
}

func (l *Ledger) publishDebits(ctx context.Context, reference string, debits []Debit, touched []models.InventoryItem) {
	if len(debits) == 0 {
		return
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reference": reference,
		"items":     len(debits),
	}).Info("Inventory debited")

	l.publisher.Publish(ctx, newEvent(EventInventoryDebited, reference, debits))
	now := l.now().UTC()
	for _, item := range touched {
		if alert := models.AlertFor(item, now); alert != nil {
			l.publisher.Publish(ctx, newEvent(EventInventoryAlert, item.ID, alert))
		}
	}
}

// Restock adds amount to an item's stock. Going past the maximum fails with
// ErrStockOverflow and changes nothing, unless opts.Clamp is set.
func (l *Ledger) Restock(ctx context.Context, itemID string, amount decimal.Decimal, opts RestockOptions) (result *RestockResult, err error) {
	ctx, span := startSpan(ctx, "ledger.Restock", attribute.String("inventory_item.id", itemID))
	defer func() { endSpan(span, err) }()

	if !amount.IsPositive() {
		return nil, validationError("restock amount must be positive")
	}

	release, err := l.locks.Lock(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		result, err = l.commitRestock(ctx, itemID, amount, opts)
		if errors.Is(err, ErrStaleVersion) && attempt < maxCommitAttempts {
			continue
		}
		break
	}
	if err != nil {
		if KindOf(err) == KindStockOverflow {
			utils.InfoLogger.WithField("inventory_item_id", itemID).Warn("Restock rejected: exceeds maximum stock level")
		}
		return nil, err
	}

	fields := logrus.Fields{
		"inventory_item_id": itemID,
		"applied":           result.Applied.String(),
		"stock":             result.Item.CurrentStock.String(),
	}
	if result.Excess.IsPositive() {
		fields["excess"] = result.Excess.String()
		utils.InfoLogger.WithFields(fields).Warn("Restock clamped at maximum stock level")
	} else {
		utils.InfoLogger.WithFields(fields).Info("Inventory restocked")
	}

	release()
	l.publisher.Publish(ctx, newEvent(EventInventoryRestocked, itemID, result))
	if alert := models.AlertFor(*result.Item, l.now().UTC()); alert != nil {
		l.publisher.Publish(ctx, newEvent(EventInventoryAlert, itemID, alert))
	}
	return result, nil
}

func (l *Ledger) commitRestock(ctx context.Context, itemID string, amount decimal.Decimal, opts RestockOptions) (*RestockResult, error) {
	var result RestockResult

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.InventoryItem
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("inventory item", itemID)
			}
			return fmt.Errorf("load inventory item: %w", err)
		}

		headroom := item.MaxStockLevel.Sub(item.CurrentStock)
		if headroom.IsNegative() {
			headroom = decimal.Zero
		}
		applied, excess := amount, decimal.Zero
		if amount.GreaterThan(headroom) {
			excess = amount.Sub(headroom)
			if !opts.Clamp {
				return &Error{
					Kind: KindStockOverflow,
					Message: fmt.Sprintf("restocking %s %s of %s exceeds the maximum of %s %s by %s",
						amount.String(), item.Unit, item.Name, item.MaxStockLevel.String(), item.Unit, excess.String()),
					Details: map[string]interface{}{
						"inventory_item_id": item.ID,
						"requested":         amount,
						"headroom":          headroom,
						"excess":            excess,
					},
				}
			}
			applied = headroom
		}

		result = RestockResult{Applied: applied, Excess: excess}
		if applied.IsZero() {
			result.Item = &item
			return nil
		}

		now := l.now().UTC()
		after := item.CurrentStock.Add(applied)
		if err := l.writeStock(tx, &item, after, now); err != nil {
			return err
		}
		if err := tx.Create(&models.StockMovement{
			InventoryItemID: item.ID,
			MovementType:    models.MovementIn,
			Quantity:        applied,
			StockAfter:      after,
			Reason:          ReasonRestock,
			UserID:          opts.ActorID,
			CreatedAt:       now,
		}).Error; err != nil {
			return fmt.Errorf("record stock movement: %w", err)
		}
		result.Item = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAlerts derives the current alerts from stock levels, high priority
// first.
func (l *Ledger) ListAlerts(ctx context.Context) (alerts []models.StockAlert, err error) {
	ctx, span := startSpan(ctx, "ledger.ListAlerts")
	defer func() { endSpan(span, err) }()

	var items []models.InventoryItem
	if err := l.db.WithContext(ctx).Order("name asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load inventory items: %w", err)
	}

	now := l.now().UTC()
	alerts = make([]models.StockAlert, 0)
	for _, item := range items {
		if alert := models.AlertFor(item, now); alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Priority == models.AlertHigh && alerts[j].Priority != models.AlertHigh
	})
	return alerts, nil
}
