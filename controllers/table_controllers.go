package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

type TableController struct {
	Scheduler *services.Scheduler
}

func NewTableController(scheduler *services.Scheduler) *TableController {
	return &TableController{Scheduler: scheduler}
}

// CreateTable -> add a table to the floor plan
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		Number int `json:"number" binding:"required"`
		Seats  int `json:"seats" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Scheduler.CreateTable(c.Request.Context(), req.Number, req.Seats)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

func (tc *TableController) GetAllTables(c *gin.Context) {
	tables, err := tc.Scheduler.ListTables(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

func (tc *TableController) GetTableByID(c *gin.Context) {
	table, err := tc.Scheduler.GetTable(c.Request.Context(), c.Param("table_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// UpdateTableStatus -> change the display status of a table
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Scheduler.UpdateTableStatus(c.Request.Context(), c.Param("table_id"), models.TableStatus(body.Status))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

func (tc *TableController) DeleteTable(c *gin.Context) {
	tableID := c.Param("table_id")
	if err := tc.Scheduler.DeleteTable(c.Request.Context(), tableID); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{"id": tableID})
}

// GetAvailability lists the tables free for a two-hour window starting at
// date. With table_id params it reports on exactly those tables instead,
// including the conflicting window of each busy one.
func (tc *TableController) GetAvailability(c *gin.Context) {
	start, err := parseTimeParam(c.Query("date"))
	if err != nil {
		utils.RespondKindError(c, http.StatusBadRequest, string(services.KindValidation), err.Error(), nil)
		return
	}

	window := services.Window{Start: start, End: start.Add(tc.Scheduler.SeatingDuration())}

	if ids := c.QueryArray("table_id"); len(ids) > 0 {
		availability, err := tc.Scheduler.CheckAvailability(c.Request.Context(), ids, start)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		utils.RespondJSON(c, http.StatusOK, "Table availability", gin.H{
			"window":       window,
			"availability": availability,
		})
		return
	}

	seats := 1
	if raw := c.Query("seats"); raw != "" {
		seats, err = strconv.Atoi(raw)
		if err != nil || seats < 1 {
			utils.RespondKindError(c, http.StatusBadRequest, string(services.KindValidation), "seats must be a positive number", nil)
			return
		}
	}

	tables, err := tc.Scheduler.ListAvailableTables(c.Request.Context(), start, seats)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available tables", gin.H{
		"window": window,
		"tables": tables,
	})
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("date is required (RFC3339)")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("date must be an RFC3339 timestamp")
	}
	return t, nil
}
