package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

type OrderController struct {
	Orders *services.OrderManager
}

func NewOrderController(orders *services.OrderManager) *OrderController {
	return &OrderController{Orders: orders}
}

// CreateOrder -> checkout; prices come from the caller's catalog snapshot
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var body struct {
		Items []services.OrderLine `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.CreateOrder(c.Request.Context(), currentActor(c).UserID, body.Items)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// GetOrders -> staff see every order (optionally ?status=), clients their own
func (oc *OrderController) GetOrders(c *gin.Context) {
	actor := currentActor(c)

	var (
		orders []models.Order
		err    error
	)
	if actor.IsStaff() {
		orders, err = oc.Orders.ListOrders(c.Request.Context(), models.OrderStatus(c.Query("status")))
	} else {
		orders, err = oc.Orders.ListOrdersByUser(c.Request.Context(), actor.UserID)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	order, err := oc.Orders.GetOrder(c.Request.Context(), c.Param("order_id"), currentActor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// GetTransitions publishes the order state machine for status pickers.
func (oc *OrderController) GetTransitions(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Order status transitions", oc.Orders.Transitions())
}

// UpdateOrderStatus -> staff move an order to its next status
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.AdvanceStatus(c.Request.Context(), c.Param("order_id"), models.OrderStatus(body.Status))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

func (oc *OrderController) CancelOrder(c *gin.Context) {
	order, err := oc.Orders.CancelOrder(c.Request.Context(), c.Param("order_id"), currentActor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", order)
}
