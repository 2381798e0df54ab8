package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

type InventoryController struct {
	Ledger *services.Ledger
}

func NewInventoryController(ledger *services.Ledger) *InventoryController {
	return &InventoryController{Ledger: ledger}
}

func (ic *InventoryController) GetItems(c *gin.Context) {
	items, err := ic.Ledger.ListItems(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of inventory items", items)
}

func (ic *InventoryController) CreateItem(c *gin.Context) {
	var req struct {
		Name          string          `json:"name" binding:"required"`
		Category      string          `json:"category"`
		CurrentStock  decimal.Decimal `json:"current_stock"`
		MinStockLevel decimal.Decimal `json:"min_stock_level"`
		MaxStockLevel decimal.Decimal `json:"max_stock_level"`
		Unit          string          `json:"unit" binding:"required"`
		CostPerUnit   decimal.Decimal `json:"cost_per_unit"`
		Supplier      string          `json:"supplier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	item, err := ic.Ledger.CreateItem(c.Request.Context(), models.InventoryItem{
		Name:          req.Name,
		Category:      req.Category,
		CurrentStock:  req.CurrentStock,
		MinStockLevel: req.MinStockLevel,
		MaxStockLevel: req.MaxStockLevel,
		Unit:          req.Unit,
		CostPerUnit:   req.CostPerUnit,
		Supplier:      req.Supplier,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Inventory item created", item)
}

// Restock -> {"amount": "2.5", "clamp": false}
func (ic *InventoryController) Restock(c *gin.Context) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Clamp  bool            `json:"clamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := ic.Ledger.Restock(c.Request.Context(), c.Param("id"), req.Amount, services.RestockOptions{
		Clamp:   req.Clamp,
		ActorID: currentActor(c).UserID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	message := "Inventory restocked"
	if result.Excess.IsPositive() {
		message = "Inventory restocked up to its maximum; excess not applied"
	}
	utils.RespondJSON(c, http.StatusOK, message, result)
}

func (ic *InventoryController) GetAlerts(c *gin.Context) {
	alerts, err := ic.Ledger.ListAlerts(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock alerts", alerts)
}

func (ic *InventoryController) GetMovements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	movements, err := ic.Ledger.ListMovements(c.Request.Context(), c.Query("item_id"), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock movements", movements)
}

func (ic *InventoryController) GetConsumptionRules(c *gin.Context) {
	rules, err := ic.Ledger.ConsumptionRules(c.Request.Context(), c.Param("menu_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Consumption rules", rules)
}

// SetConsumptionRules replaces the rules of a menu item.
func (ic *InventoryController) SetConsumptionRules(c *gin.Context) {
	var body struct {
		Rules []services.RuleInput `json:"rules"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	rules, err := ic.Ledger.SetConsumptionRules(c.Request.Context(), c.Param("menu_id"), body.Rules)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Consumption rules updated", rules)
}
