package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"gorm.io/gorm"
)

// MenuController serves the local snapshot of the menu catalog.
type MenuController struct {
	DB *gorm.DB
}

func NewMenuController(db *gorm.DB) *MenuController {
	return &MenuController{DB: db}
}

// GetAllMenus -> available items, ?all=true includes unavailable ones
func (mc *MenuController) GetAllMenus(c *gin.Context) {
	query := mc.DB.WithContext(c.Request.Context()).Order("category asc, name asc")
	if c.Query("all") != "true" {
		query = query.Where("available = ?", true)
	}

	var menus []models.MenuItem
	if err := query.Find(&menus).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of menus", menus)
}

// GetCategories -> distinct categories of available items
func (mc *MenuController) GetCategories(c *gin.Context) {
	categories := []string{}
	if err := mc.DB.WithContext(c.Request.Context()).
		Model(&models.MenuItem{}).
		Where("available = ? AND category <> ''", true).
		Distinct().
		Order("category asc").
		Pluck("category", &categories).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of menu categories", categories)
}
