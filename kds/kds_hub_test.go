package kds

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesRegisteredScreens(t *testing.T) {
	upgrader := websocket.Upgrader{}
	registered := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		RegisterClient(conn, "staff")
		registered <- conn
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	serverSide := <-registered
	assert.Equal(t, 1, ClientCount())

	BroadcastMessage(Message{Event: EventStockAlert, Data: map[string]string{"item": "Ground Beef"}})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, EventStockAlert, msg.Event)
	assert.Equal(t, "Ground Beef", msg.Data["item"])

	UnregisterClient(serverSide)
	assert.Equal(t, 0, ClientCount())
}

func TestRegistryNotHeldDuringWrites(t *testing.T) {
	// a broadcast stuck writing to a slow screen holds writeMu only
	kdsHub.writeMu.Lock()
	defer kdsHub.writeMu.Unlock()

	done := make(chan int, 1)
	go func() { done <- ClientCount() }()
	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(time.Second):
		t.Fatal("registry blocked behind a socket write")
	}
}

func TestBroadcastDropsFailedScreen(t *testing.T) {
	upgrader := websocket.Upgrader{}
	registered := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		RegisterClient(conn, "kitchen")
		registered <- conn
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	serverSide := <-registered
	require.Equal(t, 1, ClientCount())

	// the socket is gone but the hub still lists it
	require.NoError(t, serverSide.UnderlyingConn().Close())
	BroadcastMessage(Message{Event: EventOrderUpdate, Data: "o-1"})
	assert.Equal(t, 0, ClientCount())
}
