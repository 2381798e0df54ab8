package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-booking/kds"
	"github.com/yeremiapane/restaurant-booking/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// KDSHandler -> websocket endpoint for staff screens
func KDSHandler(c *gin.Context) {
	role := c.GetString("role")
	if role == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if !utils.IsStaffRole(role) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("Websocket upgrade failed: %v", err)
		return
	}

	kds.RegisterClient(ws, role)
	utils.InfoLogger.WithField("role", role).Info("Screen connected")

	// drain until the client goes away
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	kds.UnregisterClient(ws)
}
