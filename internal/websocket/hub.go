package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// clusterChannel carries events between instances sharing one Redis
const clusterChannel = "rag_cluster_events"

type Hub struct {
	// Registered clients keyed by thread filter; "" receives every thread
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// Optional; nil keeps delivery local to this instance
	rdb        *redis.Client
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// frame is what a websocket client receives
type frame struct {
	Type       string                 `json:"type"`
	ThreadID   string                 `json:"thread_id,omitempty"`
	OccurredAt string                 `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

type clusterPayload struct {
	Origin   string          `json:"origin"`
	ThreadID string          `json:"thread_id"`
	Message  json.RawMessage `json:"message"`
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Filter] == nil {
				h.clients[client.Filter] = make(map[*Client]struct{})
			}
			h.clients[client.Filter][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": client.ID, "thread_filter": client.Filter})

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.Filter]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.Send)
				}
				if len(set) == 0 {
					delete(h.clients, client.Filter)
				}
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"client_id": client.ID})
		}
	}
}

// Broadcast delivers an event to local clients watching its thread and
// shares it with other instances
func (h *Hub) Broadcast(event events.Event) {
	payload := event.Payload()
	threadID, _ := payload["thread_id"].(string)

	data, err := json.Marshal(frame{
		Type:       event.EventType(),
		ThreadID:   threadID,
		OccurredAt: event.Timestamp().UTC().Format(time.RFC3339Nano),
		Data:       payload,
	})
	if err != nil {
		h.logger.Warn("Hub", "Failed to encode event", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
		return
	}

	h.deliver(threadID, data)

	if h.rdb != nil {
		msg, _ := json.Marshal(clusterPayload{Origin: h.instanceID, ThreadID: threadID, Message: data})
		if err := h.rdb.Publish(context.Background(), clusterChannel, msg).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish to cluster", map[string]interface{}{"error": err.Error()})
		}
	}
}

// ClientCount is the number of open connections on this instance
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) deliver(threadID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := []string{""}
	if threadID != "" {
		targets = append(targets, threadID)
	}
	for _, filter := range targets {
		for client := range h.clients[filter] {
			select {
			case client.Send <- data:
			default:
				// Slow consumers lose events rather than stall the pipeline
				h.logger.Warn("Hub", "Client buffer full, dropping event", map[string]interface{}{"client_id": client.ID})
			}
		}
	}
}

func (h *Hub) closeAll() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for filter, set := range h.clients {
		for client := range set {
			close(client.Send)
		}
		delete(h.clients, filter)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterPayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliver(payload.ThreadID, payload.Message)
		}
	}
}
