package handler

import (
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/pkg/serverutils"
	internalWS "research-agent-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// EventsHandler exposes the live pipeline event stream
type EventsHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewEventsHandler(hub *internalWS.Hub, log logger.ILogger) *EventsHandler {
	return &EventsHandler{
		hub:    hub,
		logger: log,
	}
}

func (h *EventsHandler) RegisterRoutes(r fiber.Router) {
	g := r.Group("/events")
	g.Get("/ws", h.ServeWs)
	g.Get("/clients", h.Clients)
}

// ServeWs upgrades the request and streams events. ?thread_id= narrows the
// stream to one conversation.
func (h *EventsHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	filter := c.Query("thread_id")

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("EventsHandler", "Starting event stream", map[string]interface{}{"thread_filter": filter})
		internalWS.ServeWs(h.hub, conn, filter)
		h.logger.Info("EventsHandler", "Event stream ended", map[string]interface{}{"thread_filter": filter})
	})(c)
}

func (h *EventsHandler) Clients(c *fiber.Ctx) error {
	return c.JSON(serverutils.SuccessResponse("Connected event clients", fiber.Map{"clients": h.hub.ClientCount()}))
}
