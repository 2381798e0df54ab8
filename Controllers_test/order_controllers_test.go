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

func TestCreateAndGetOrder(t *testing.T) {
	app := setupApp(t)
	menu := app.createMenuItem(t, "Test Food", "10.00", true)
	alice := tokenFor(t, "alice", utils.RoleClient)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": menu.ID, "name": menu.Name, "quantity": 2, "unit_price": "10.00"},
		},
	}
	code, resp, data := app.do(t, http.MethodPost, "/api/orders", alice, payload)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	assert.Equal(t, "Order created", resp.Message)
	var order models.Order
	decodeData(t, data, &order)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.True(t, decimal.NewFromInt(20).Equal(order.Total))

	code, resp, data = app.do(t, http.MethodGet, "/api/orders/"+order.ID, alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Order detail", resp.Message)
	var fetched models.Order
	decodeData(t, data, &fetched)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Len(t, fetched.OrderItems, 1)

	code, _, _ = app.do(t, http.MethodGet, "/api/orders/"+order.ID, tokenFor(t, "bob", utils.RoleClient), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _, _ = app.do(t, http.MethodPost, "/api/orders", alice, map[string]interface{}{"items": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestConfirmOrderInsufficientStock(t *testing.T) {
	app := setupApp(t)
	burger := app.createMenuItem(t, "Burger", "12.50", true)
	beef := app.createInventoryItem(t, "Ground Beef", "0.3", "0.1", "10")
	admin := tokenFor(t, "root", utils.RoleAdmin)
	staff := tokenFor(t, "s1", utils.RoleStaff)
	alice := tokenFor(t, "alice", utils.RoleClient)

	code, resp, _ := app.do(t, http.MethodPut, "/api/menu/"+burger.ID+"/consumption", admin, map[string]interface{}{
		"rules": []map[string]interface{}{{"inventory_item_id": beef.ID, "quantity": "0.2"}},
	})
	require.Equal(t, http.StatusOK, code, resp.Message)

	line := map[string]interface{}{"menu_item_id": burger.ID, "quantity": 1, "unit_price": "12.50"}
	code, _, data := app.do(t, http.MethodPost, "/api/orders", alice, map[string]interface{}{
		"items": []interface{}{line, line},
	})
	require.Equal(t, http.StatusCreated, code)
	var order models.Order
	decodeData(t, data, &order)

	code, _, _ = app.do(t, http.MethodPut, "/api/orders/"+order.ID+"/status", alice, map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, code)

	code, resp, _ = app.do(t, http.MethodPut, "/api/orders/"+order.ID+"/status", staff, map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "insufficient_stock", resp.Kind)
	details, ok := resp.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Ground Beef", details["name"])

	code, _, data = app.do(t, http.MethodGet, "/api/orders/"+order.ID, staff, nil)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, data, &order)
	assert.Equal(t, models.OrderPending, order.Status)

	// a single burger fits
	code, _, data = app.do(t, http.MethodPost, "/api/orders", alice, map[string]interface{}{"items": []interface{}{line}})
	require.Equal(t, http.StatusCreated, code)
	var single models.Order
	decodeData(t, data, &single)
	code, resp, _ = app.do(t, http.MethodPut, "/api/orders/"+single.ID+"/status", staff, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp, _ = app.do(t, http.MethodPost, "/api/orders/"+single.ID+"/cancel", alice, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_transition", resp.Kind)
}

func TestGetOrdersScoping(t *testing.T) {
	app := setupApp(t)
	menu := app.createMenuItem(t, "Tea", "2.00", true)
	line := map[string]interface{}{"menu_item_id": menu.ID, "quantity": 1, "unit_price": "2.00"}

	for _, user := range []string{"alice", "bob"} {
		code, _, _ := app.do(t, http.MethodPost, "/api/orders", tokenFor(t, user, utils.RoleClient), map[string]interface{}{"items": []interface{}{line}})
		require.Equal(t, http.StatusCreated, code)
	}

	code, _, data := app.do(t, http.MethodGet, "/api/orders", tokenFor(t, "alice", utils.RoleClient), nil)
	require.Equal(t, http.StatusOK, code)
	var mine []models.Order
	decodeData(t, data, &mine)
	assert.Len(t, mine, 1)

	code, _, data = app.do(t, http.MethodGet, "/api/orders?status=pending", tokenFor(t, "s1", utils.RoleStaff), nil)
	require.Equal(t, http.StatusOK, code)
	var all []models.Order
	decodeData(t, data, &all)
	assert.Len(t, all, 2)

	code, _, data = app.do(t, http.MethodGet, "/api/orders/transitions", tokenFor(t, "alice", utils.RoleClient), nil)
	require.Equal(t, http.StatusOK, code)
	var transitions map[string][]string
	decodeData(t, data, &transitions)
	assert.Equal(t, []string{"confirmed", "cancelled"}, transitions["pending"])
	assert.Empty(t, transitions["delivered"])
}
