package Controllers_test

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
)

func TestInventoryRoutesRequireStaff(t *testing.T) {
	app := setupApp(t)
	code, _, _ := app.do(t, http.MethodGet, "/api/inventory", tokenFor(t, "alice", utils.RoleClient), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _, _ = app.do(t, http.MethodPost, "/api/inventory", tokenFor(t, "s1", utils.RoleStaff), map[string]interface{}{"name": "Salt", "unit": "kg"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestCreateItemAndRestock(t *testing.T) {
	app := setupApp(t)
	admin := tokenFor(t, "root", utils.RoleAdmin)
	staff := tokenFor(t, "s1", utils.RoleStaff)

	code, resp, data := app.do(t, http.MethodPost, "/api/inventory", admin, map[string]interface{}{
		"name":            "Burger Bun",
		"unit":            "pcs",
		"current_stock":   "5",
		"min_stock_level": "10",
		"max_stock_level": "20",
		"cost_per_unit":   "0.40",
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var item models.InventoryItem
	decodeData(t, data, &item)

	code, _, data = app.do(t, http.MethodGet, "/api/inventory/alerts", staff, nil)
	require.Equal(t, http.StatusOK, code)
	var alerts []models.StockAlert
	decodeData(t, data, &alerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertHigh, alerts[0].Priority)

	code, resp, _ = app.do(t, http.MethodPost, "/api/inventory/"+item.ID+"/restock", staff, map[string]interface{}{"amount": "30"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "stock_overflow", resp.Kind)

	code, resp, data = app.do(t, http.MethodPost, "/api/inventory/"+item.ID+"/restock", staff, map[string]interface{}{"amount": "30", "clamp": true})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var result struct {
		Item    models.InventoryItem `json:"item"`
		Applied decimal.Decimal      `json:"applied"`
		Excess  decimal.Decimal      `json:"excess"`
	}
	decodeData(t, data, &result)
	assert.True(t, decimal.NewFromInt(15).Equal(result.Applied))
	assert.True(t, decimal.NewFromInt(15).Equal(result.Excess))
	assert.True(t, decimal.NewFromInt(20).Equal(result.Item.CurrentStock))

	code, _, data = app.do(t, http.MethodGet, "/api/inventory/movements?item_id="+item.ID, staff, nil)
	require.Equal(t, http.StatusOK, code)
	var movements []models.StockMovement
	decodeData(t, data, &movements)
	require.Len(t, movements, 1)
	assert.Equal(t, "s1", movements[0].UserID)
}
