package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// Event types
const (
	EventOrderUpdate       = "order_update"
	EventReservationUpdate = "reservation_update"
	EventTableUpdate       = "table_update"
	EventInventoryUpdate   = "inventory_update"
	EventStockAlert        = "stock_alert"
	EventAlertsSnapshot    = "stock_alerts_snapshot"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// writeWait bounds a write to one screen; a stalled screen is dropped.
const writeWait = 5 * time.Second

// KDSHub holds the connected staff screens (kitchen, floor, admin).
// mutex guards the registry only; writeMu serializes writes to the sockets.
type KDSHub struct {
	clients map[*websocket.Conn]string // conn -> role
	mutex   sync.Mutex
	writeMu sync.Mutex
}

var kdsHub = KDSHub{
	clients: make(map[*websocket.Conn]string),
}

// RegisterClient adds a connection with the role it authenticated as.
func RegisterClient(conn *websocket.Conn, role string) {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()
	kdsHub.clients[conn] = role
}

// UnregisterClient drops and closes a connection.
func UnregisterClient(conn *websocket.Conn) {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()
	delete(kdsHub.clients, conn)
	conn.Close()
}

// ClientCount returns the number of connected screens.
func ClientCount() int {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()
	return len(kdsHub.clients)
}

// BroadcastMessage sends msg to every connected screen.
func BroadcastMessage(msg Message) {
	broadcast(msg)
}

func broadcast(msg Message) {
	kdsHub.mutex.Lock()
	targets := make(map[*websocket.Conn]string, len(kdsHub.clients))
	for conn, role := range kdsHub.clients {
		targets[conn] = role
	}
	kdsHub.mutex.Unlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling message: %v", err)
		return
	}

	kdsHub.writeMu.Lock()
	defer kdsHub.writeMu.Unlock()
	for conn, role := range targets {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"event": msg.Event,
				"role":  role,
			}).Errorf("Error sending message to client: %v", err)
			UnregisterClient(conn)
		}
	}
}
