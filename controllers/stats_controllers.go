package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-booking/kds"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
	"gorm.io/gorm"
)

type StatsController struct {
	DB     *gorm.DB
	Ledger *services.Ledger
	now    func() time.Time
}

// NewStatsController uses now to decide which day is "today"; nil means time.Now.
func NewStatsController(db *gorm.DB, ledger *services.Ledger, now func() time.Time) *StatsController {
	if now == nil {
		now = time.Now
	}
	return &StatsController{DB: db, Ledger: ledger, now: now}
}

type dashboardStats struct {
	TotalOrders       int64                        `json:"total_orders"`
	OrdersByStatus    map[models.OrderStatus]int64 `json:"orders_by_status"`
	DeliveredRevenue  decimal.Decimal              `json:"delivered_revenue"`
	TodayOrders       int64                        `json:"today_orders"`
	TodayReservations int64                        `json:"today_reservations"`
	TableStats        map[models.TableStatus]int64 `json:"table_stats"`
	ActiveAlerts      int                          `json:"active_alerts"`
	HighAlerts        int                          `json:"high_alerts"`
	ConnectedScreens  int                          `json:"connected_screens"`
}

// GetDashboardStats -> summary for the admin dashboard
func (sc *StatsController) GetDashboardStats(c *gin.Context) {
	ctx := c.Request.Context()
	db := sc.DB.WithContext(ctx)

	stats := dashboardStats{
		OrdersByStatus:   make(map[models.OrderStatus]int64),
		TableStats:       make(map[models.TableStatus]int64),
		DeliveredRevenue: decimal.Zero,
	}

	var orderRows []struct {
		Status models.OrderStatus
		Count  int64
	}
	if err := db.Model(&models.Order{}).Select("status, count(*) as count").Group("status").Scan(&orderRows).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	for _, row := range orderRows {
		stats.OrdersByStatus[row.Status] = row.Count
		stats.TotalOrders += row.Count
	}

	var totals []decimal.Decimal
	if err := db.Model(&models.Order{}).Where("status = ?", models.OrderDelivered).Pluck("total", &totals).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	for _, t := range totals {
		stats.DeliveredRevenue = stats.DeliveredRevenue.Add(t)
	}

	dayStart := sc.now().UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	if err := db.Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Count(&stats.TodayOrders).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if err := db.Model(&models.Reservation{}).
		Where("status <> ? AND start_at >= ? AND start_at < ?", models.ReservationCancelled, dayStart, dayEnd).
		Count(&stats.TodayReservations).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	var tableRows []struct {
		Status models.TableStatus
		Count  int64
	}
	if err := db.Model(&models.Table{}).Select("status, count(*) as count").Group("status").Scan(&tableRows).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	for _, row := range tableRows {
		stats.TableStats[row.Status] = row.Count
	}

	alerts, err := sc.Ledger.ListAlerts(ctx)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	stats.ActiveAlerts = len(alerts)
	for _, a := range alerts {
		if a.Priority == models.AlertHigh {
			stats.HighAlerts++
		}
	}

	stats.ConnectedScreens = kds.ClientCount()

	utils.RespondJSON(c, http.StatusOK, "Dashboard stats", stats)
}
