package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-booking/models"
)

func TestDebitForOrderAggregatesRules(t *testing.T) {
	db := setupTestDB(t)
	svc, pub := newTestServices(t, db)
	ctx := context.Background()

	burger := createMenuItem(t, db, "Burger", "12.50")
	fries := createMenuItem(t, db, "Fries", "4.00")
	salad := createMenuItem(t, db, "Salad", "6.00")
	beef := createInventoryItem(t, db, "Beef", "5", "1", "20")
	potatoes := createInventoryItem(t, db, "Potatoes", "3", "1", "20")
	createRule(t, db, burger.ID, beef.ID, "0.2")
	createRule(t, db, burger.ID, potatoes.ID, "0.1")
	createRule(t, db, fries.ID, potatoes.ID, "0.25")

	debits, err := svc.Ledger.DebitForOrder(ctx, "order-1", []LineItem{
		{MenuItemID: burger.ID, Quantity: 2},
		{MenuItemID: fries.ID, Quantity: 1},
		{MenuItemID: salad.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, debits, 2)

	requireDecimal(t, "4.6", stockOf(t, db, beef.ID))
	requireDecimal(t, "2.55", stockOf(t, db, potatoes.ID))

	var movements []models.StockMovement
	require.NoError(t, db.Where("reference = ?", "order-1").Find(&movements).Error)
	assert.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, models.MovementOut, m.MovementType)
		assert.Equal(t, ReasonOrderConfirmed, m.Reason)
	}

	assert.Equal(t, 1, pub.count(EventInventoryDebited))
}

func TestDebitForOrderIsAllOrNothing(t *testing.T) {
	db := setupTestDB(t)
	svc, pub := newTestServices(t, db)
	ctx := context.Background()

	burger := createMenuItem(t, db, "Burger", "12.50")
	beef := createInventoryItem(t, db, "Beef", "0.3", "0.1", "20")
	buns := createInventoryItem(t, db, "Buns", "50", "10", "100")
	createRule(t, db, burger.ID, buns.ID, "1")
	createRule(t, db, burger.ID, beef.ID, "0.2")

	_, err := svc.Ledger.DebitForOrder(ctx, "order-1", []LineItem{{MenuItemID: burger.ID, Quantity: 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, beef.ID, de.Details["inventory_item_id"])
	assert.Equal(t, "Beef", de.Details["name"])
	requireDecimal(t, "0.4", de.Details["required"].(decimal.Decimal))
	requireDecimal(t, "0.3", de.Details["available"].(decimal.Decimal))

	requireDecimal(t, "0.3", stockOf(t, db, beef.ID))
	requireDecimal(t, "50", stockOf(t, db, buns.ID))

	var movements int64
	db.Model(&models.StockMovement{}).Count(&movements)
	assert.Zero(t, movements)
	assert.Zero(t, pub.count(EventInventoryDebited))
}

func TestDebitForOrderPublishesAlerts(t *testing.T) {
	db := setupTestDB(t)
	svc, pub := newTestServices(t, db)

	soup := createMenuItem(t, db, "Soup", "5.00")
	stock := createInventoryItem(t, db, "Stock", "2", "1", "10")
	createRule(t, db, soup.ID, stock.ID, "0.5")

	_, err := svc.Ledger.DebitForOrder(context.Background(), "order-1", []LineItem{{MenuItemID: soup.ID, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, pub.count(EventInventoryAlert), "1.5 is within 1.5x of the minimum")
}

func TestDebitForOrderValidatesLines(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)

	_, err := svc.Ledger.DebitForOrder(context.Background(), "order-1", []LineItem{{MenuItemID: "x", Quantity: 0}})
	assert.Equal(t, KindValidation, KindOf(err))

	debits, err := svc.Ledger.DebitForOrder(context.Background(), "order-1", nil)
	require.NoError(t, err)
	assert.Empty(t, debits)
}

func TestStockNeverNegativeUnderRandomSequence(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	ctx := context.Background()

	burger := createMenuItem(t, db, "Burger", "12.50")
	beef := createInventoryItem(t, db, "Beef", "1", "0.5", "3")
	createRule(t, db, burger.ID, beef.ID, "0.2")

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 60; i++ {
		if rng.Intn(3) == 0 {
			amount := decimal.NewFromFloat(float64(rng.Intn(10)+1) / 10)
			_, err := svc.Ledger.Restock(ctx, beef.ID, amount, RestockOptions{Clamp: rng.Intn(2) == 0})
			if err != nil {
				assert.True(t, errors.Is(err, ErrStockOverflow), "unexpected: %v", err)
			}
		} else {
			_, err := svc.Ledger.DebitForOrder(ctx, "o", []LineItem{{MenuItemID: burger.ID, Quantity: rng.Intn(4) + 1}})
			if err != nil {
				assert.True(t, errors.Is(err, ErrInsufficientStock), "unexpected: %v", err)
			}
		}

		stock := stockOf(t, db, beef.ID)
		require.False(t, stock.IsNegative(), "stock went negative at step %d: %s", i, stock)
		require.True(t, stock.LessThanOrEqual(decimal.NewFromInt(3)), "stock above maximum at step %d: %s", i, stock)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)

	burger := createMenuItem(t, db, "Burger", "12.50")
	beef := createInventoryItem(t, db, "Beef", "1", "0.2", "5")
	buns := createInventoryItem(t, db, "Buns", "3", "1", "50")
	createRule(t, db, burger.ID, beef.ID, "0.2")
	createRule(t, db, burger.ID, buns.ID, "1")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ledger.DebitForOrder(context.Background(), "o", []LineItem{{MenuItemID: burger.ID, Quantity: 1}})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// buns run out after three burgers
	assert.Equal(t, 3, ok)
	requireDecimal(t, "0", stockOf(t, db, buns.ID))
	requireDecimal(t, "0.4", stockOf(t, db, beef.ID))
}

func TestRestockRejectsOverflow(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	item := createInventoryItem(t, db, "Flour", "8", "2", "10")

	_, err := svc.Ledger.Restock(context.Background(), item.ID, decimal.NewFromInt(5), RestockOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStockOverflow))

	var de *Error
	require.True(t, errors.As(err, &de))
	requireDecimal(t, "3", de.Details["excess"].(decimal.Decimal))
	requireDecimal(t, "2", de.Details["headroom"].(decimal.Decimal))
	requireDecimal(t, "8", stockOf(t, db, item.ID))
}

func TestRestockClampReportsExcess(t *testing.T) {
	db := setupTestDB(t)
	svc, pub := newTestServices(t, db)
	item := createInventoryItem(t, db, "Flour", "8", "2", "10")

	result, err := svc.Ledger.Restock(context.Background(), item.ID, decimal.NewFromInt(5), RestockOptions{Clamp: true, ActorID: "staff-1"})
	require.NoError(t, err)
	requireDecimal(t, "2", result.Applied)
	requireDecimal(t, "3", result.Excess)
	requireDecimal(t, "10", result.Item.CurrentStock)
	requireDecimal(t, "10", stockOf(t, db, item.ID))

	movements, err := svc.Ledger.ListMovements(context.Background(), item.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, models.MovementIn, movements[0].MovementType)
	assert.Equal(t, "staff-1", movements[0].UserID)
	assert.Equal(t, 1, pub.count(EventInventoryRestocked))
}

func TestRestockValidation(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	item := createInventoryItem(t, db, "Flour", "8", "2", "10")

	_, err := svc.Ledger.Restock(context.Background(), item.ID, decimal.Zero, RestockOptions{})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.Ledger.Restock(context.Background(), "missing", decimal.NewFromInt(1), RestockOptions{})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestListAlertsDerivesPriorities(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)

	createInventoryItem(t, db, "Beef", "1", "1", "10")     // at minimum
	createInventoryItem(t, db, "Buns", "1.5", "1", "10")   // 1.5x minimum
	createInventoryItem(t, db, "Cheese", "1.6", "1", "10") // above both
	createInventoryItem(t, db, "Apples", "0", "2", "10")   // empty

	alerts, err := svc.Ledger.ListAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	priorities := map[string]models.AlertPriority{}
	for _, a := range alerts {
		priorities[a.ItemName] = a.Priority
		assert.NotEmpty(t, a.ID)
		assert.NotEmpty(t, a.Message)
	}
	assert.Equal(t, models.AlertHigh, priorities["Beef"])
	assert.Equal(t, models.AlertHigh, priorities["Apples"])
	assert.Equal(t, models.AlertMedium, priorities["Buns"])
	assert.NotContains(t, priorities, "Cheese")

	assert.Equal(t, models.AlertHigh, alerts[0].Priority)
	assert.Equal(t, models.AlertHigh, alerts[1].Priority)
	assert.Equal(t, models.AlertMedium, alerts[2].Priority)
}

func TestCreateItemValidation(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	ctx := context.Background()

	valid := models.InventoryItem{
		Name:          "Rice",
		Unit:          "kg",
		CurrentStock:  decimal.NewFromInt(5),
		MinStockLevel: decimal.NewFromInt(2),
		MaxStockLevel: decimal.NewFromInt(20),
	}
	item, err := svc.Ledger.CreateItem(ctx, valid)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)

	overMax := valid
	overMax.CurrentStock = decimal.NewFromInt(21)
	_, err = svc.Ledger.CreateItem(ctx, overMax)
	assert.Equal(t, KindValidation, KindOf(err))

	minAboveMax := valid
	minAboveMax.MinStockLevel = decimal.NewFromInt(30)
	_, err = svc.Ledger.CreateItem(ctx, minAboveMax)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSetConsumptionRulesReplacesSet(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestServices(t, db)
	ctx := context.Background()

	burger := createMenuItem(t, db, "Burger", "12.50")
	beef := createInventoryItem(t, db, "Beef", "5", "1", "20")
	buns := createInventoryItem(t, db, "Buns", "50", "10", "100")
	createRule(t, db, burger.ID, beef.ID, "0.2")

	rules, err := svc.Ledger.SetConsumptionRules(ctx, burger.ID, []RuleInput{
		{InventoryItemID: buns.ID, Quantity: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, buns.ID, rules[0].InventoryItemID)
	require.NotNil(t, rules[0].InventoryItem)
	assert.Equal(t, "Buns", rules[0].InventoryItem.Name)

	_, err = svc.Ledger.SetConsumptionRules(ctx, burger.ID, []RuleInput{
		{InventoryItemID: beef.ID, Quantity: decimal.NewFromInt(1)},
		{InventoryItemID: beef.ID, Quantity: decimal.NewFromInt(2)},
	})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.Ledger.SetConsumptionRules(ctx, burger.ID, []RuleInput{
		{InventoryItemID: "ghost", Quantity: decimal.NewFromInt(1)},
	})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.Ledger.SetConsumptionRules(ctx, "no-such-menu", nil)
	assert.Equal(t, KindNotFound, KindOf(err))

	// failed replacements leave the previous set in place
	rules, err = svc.Ledger.ConsumptionRules(ctx, burger.ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, buns.ID, rules[0].InventoryItemID)
}
