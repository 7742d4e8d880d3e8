package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs streams events for filter ("" for every thread) until the peer leaves.
func ServeWs(hub *Hub, c *websocket.Conn, filter string) {
	client := &Client{
		ID:     uuid.NewString(),
		Hub:    hub,
		Conn:   c,
		Filter: filter,
		Send:   make(chan []byte, sendBuffer),
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
