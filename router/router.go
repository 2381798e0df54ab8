package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-booking/controllers"
	"github.com/yeremiapane/restaurant-booking/middlewares"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
	"gorm.io/gorm"
)

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middlewares.RateLimiter
	// Now decides the current day for dashboard stats; nil means time.Now.
	Now func() time.Time
}

func SetupRouter(db *gorm.DB, svc *services.Services, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(opts.AllowedOrigins))
	r.Use(middlewares.LoggerMiddleware())
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.RateLimit())
	}

	tableCtrl := controllers.NewTableController(svc.Scheduler)
	reservationCtrl := controllers.NewReservationController(svc.Scheduler)
	orderCtrl := controllers.NewOrderController(svc.Orders)
	inventoryCtrl := controllers.NewInventoryController(svc.Ledger)
	menuCtrl := controllers.NewMenuController(db)
	statsCtrl := controllers.NewStatsController(db, svc.Ledger, opts.Now)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	api.GET("/menu", menuCtrl.GetAllMenus)
	api.GET("/menu/categories", menuCtrl.GetCategories)
	api.GET("/tables", tableCtrl.GetAllTables)
	api.GET("/tables/availability", tableCtrl.GetAvailability)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := api.Group("")
	auth.Use(middlewares.AuthMiddleware(opts.JWTSecret))

	// TABLES
	auth.GET("/tables/:table_id", tableCtrl.GetTableByID)
	auth.POST("/tables", middlewares.StaffOnly(), tableCtrl.CreateTable)
	auth.PATCH("/tables/:table_id/status", middlewares.StaffOnly(), tableCtrl.UpdateTableStatus)
	auth.DELETE("/tables/:table_id", middlewares.AdminOnly(), tableCtrl.DeleteTable)

	// RESERVATIONS
	auth.POST("/reservations", reservationCtrl.CreateReservation)
	auth.GET("/reservations", reservationCtrl.GetReservations)
	auth.GET("/reservations/:id", reservationCtrl.GetReservationByID)
	auth.PUT("/reservations/:id", reservationCtrl.UpdateReservationStatus)
	auth.POST("/reservations/:id/confirm", middlewares.StaffOnly(), reservationCtrl.ConfirmReservation)
	auth.POST("/reservations/:id/cancel", reservationCtrl.CancelReservation)

	// ORDERS
	auth.POST("/orders", orderCtrl.CreateOrder)
	auth.GET("/orders", orderCtrl.GetOrders)
	auth.GET("/orders/transitions", orderCtrl.GetTransitions)
	auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	auth.PUT("/orders/:order_id/status", middlewares.StaffOnly(), orderCtrl.UpdateOrderStatus)
	auth.POST("/orders/:order_id/cancel", orderCtrl.CancelOrder)

	// INVENTORY (staff/admin)
	inventory := auth.Group("/inventory", middlewares.StaffOnly())
	inventory.GET("", inventoryCtrl.GetItems)
	inventory.POST("", middlewares.AdminOnly(), inventoryCtrl.CreateItem)
	inventory.GET("/alerts", inventoryCtrl.GetAlerts)
	inventory.GET("/movements", inventoryCtrl.GetMovements)
	inventory.POST("/:id/restock", inventoryCtrl.Restock)

	// CONSUMPTION RULES
	auth.GET("/menu/:menu_id/consumption", middlewares.StaffOnly(), inventoryCtrl.GetConsumptionRules)
	auth.PUT("/menu/:menu_id/consumption", middlewares.AdminOnly(), inventoryCtrl.SetConsumptionRules)

	// DASHBOARD
	auth.GET("/stats/dashboard", middlewares.AdminOnly(), statsCtrl.GetDashboardStats)

	// Websocket for staff screens; browsers pass the token as ?token=
	r.GET("/ws", middlewares.AuthMiddleware(opts.JWTSecret), middlewares.StaffOnly(), controllers.KDSHandler)

	utils.InfoLogger.Println("Routes registered")
	return r
}
