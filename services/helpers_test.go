package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	utils.InitLoggerWithLevel("error")
	os.Exit(m.Run())
}

var testNow = time.Date(2030, 3, 14, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// at returns testNow's day at hh:mm UTC.
func at(hour, minute int) time.Time {
	return time.Date(testNow.Year(), testNow.Month(), testNow.Day(), hour, minute, 0, 0, time.UTC)
}

// setupTestDB opens a private in-memory database with one connection.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Table{},
		&models.Reservation{},
		&models.MenuItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.InventoryItem{},
		&models.ConsumptionRule{},
		&models.StockMovement{},
	))
	return db
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) count(eventType string) int {
	n := 0
	for _, t := range p.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

func newTestServices(t *testing.T, db *gorm.DB) (*Services, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return New(db, Config{
		SeatingDuration: 2 * time.Hour,
		Publisher:       pub,
		Now:             fixedNow,
	}), pub
}

func createTable(t *testing.T, db *gorm.DB, number, seats int) models.Table {
	t.Helper()
	table := models.Table{Number: number, Seats: seats}
	require.NoError(t, db.Create(&table).Error)
	return table
}

func createMenuItem(t *testing.T, db *gorm.DB, name, price string) models.MenuItem {
	t.Helper()
	item := models.MenuItem{Name: name, Category: "Main", Price: decimal.RequireFromString(price), Available: true}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func createInventoryItem(t *testing.T, db *gorm.DB, name, stock, min, max string) models.InventoryItem {
	t.Helper()
	item := models.InventoryItem{
		Name:          name,
		Unit:          "kg",
		CurrentStock:  decimal.RequireFromString(stock),
		MinStockLevel: decimal.RequireFromString(min),
		MaxStockLevel: decimal.RequireFromString(max),
		CostPerUnit:   decimal.NewFromInt(1),
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func createRule(t *testing.T, db *gorm.DB, menuID, inventoryID, qty string) {
	t.Helper()
	require.NoError(t, db.Create(&models.ConsumptionRule{
		MenuItemID:      menuID,
		InventoryItemID: inventoryID,
		Quantity:        decimal.RequireFromString(qty),
	}).Error)
}

func stockOf(t *testing.T, db *gorm.DB, id string) decimal.Decimal {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, db.First(&item, "id = ?", id).Error)
	return item.CurrentStock
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

var staff = Actor{UserID: "staff-1", Role: utils.RoleStaff}
