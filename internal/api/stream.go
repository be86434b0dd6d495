package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/halcyon-health/affect.report/internal/affect"
)

// streamWriteTimeout bounds one websocket write. A client that cannot
// drain events within it gets dropped rather than stalling the broadcast.
const streamWriteTimeout = 5 * time.Second

// StreamEvent is the envelope carried on /ws/affect. Data holds the
// domain object named by Type: affect_state, alert, or ema_prompt.
type StreamEvent struct {
	Type          string      `json:"type"`
	ParticipantID string      `json:"participant_id,omitempty"`
	Data          interface{} `json:"data"`
	Timestamp     time.Time   `json:"timestamp"`
}

// streamClient is one connected websocket subscriber. Writes to the
// connection are serialized through its own mutex.
type streamClient struct {
	conn *websocket.Conn

	// filter, when set, limits delivery to one participant's events.
	filter string

	mu sync.Mutex
}

func (c *streamClient) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub fans inference results, alerts and prompt notices out to websocket
// subscribers. Subscribers are listen-only; anything they send is drained
// and ignored.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*streamClient]struct{}

	eventsSent    atomic.Uint64
	eventsDropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Dashboards are served from other origins on the LAN.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// HandleWS upgrades the request and keeps the connection registered until
// the client goes away. An optional participant_id query parameter
// narrows the stream to one participant.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Stream] upgrade failed: %v", err)
		return
	}

	client := &streamClient{
		conn:   conn,
		filter: r.URL.Query().Get("participant_id"),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[Stream] client connected (total: %d)", count)

	defer func() {
		h.removeClient(client)
		conn.Close()
	}()

	// The read loop only notices closes and drains control frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(c *streamClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.Printf("[Stream] client disconnected (total: %d)", count)
	}
}

// Broadcast marshals one event and sends it to every subscriber whose
// filter matches. A failed write drops that subscriber; the rest are
// unaffected.
func (h *Hub) Broadcast(eventType, participantID string, data interface{}) {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return
	}
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	payload, err := json.Marshal(StreamEvent{
		Type:          eventType,
		ParticipantID: participantID,
		Data:          data,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[Stream] failed to marshal %s event: %v", eventType, err)
		return
	}

	for _, c := range clients {
		if c.filter != "" && participantID != "" && c.filter != participantID {
			continue
		}
		if err := c.send(payload); err != nil {
			h.eventsDropped.Add(1)
			h.removeClient(c)
			c.conn.Close()
			continue
		}
		h.eventsSent.Add(1)
	}
}

// BroadcastState publishes a freshly inferred state. Shaped to slot
// straight into the pipeline's OnState fan-out.
func (h *Hub) BroadcastState(state *affect.AffectState) {
	if state == nil {
		return
	}
	h.Broadcast("affect_state", state.ParticipantID, state)
}

// BroadcastAlert publishes a fired monitoring alert.
func (h *Hub) BroadcastAlert(alert *affect.Alert) {
	if alert == nil {
		return
	}
	h.Broadcast("alert", alert.ParticipantID, alert)
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubStats contains stream fan-out counters.
type HubStats struct {
	Clients       int    `json:"clients"`
	EventsSent    uint64 `json:"events_sent"`
	EventsDropped uint64 `json:"events_dropped"`
}

// Stats returns a snapshot of hub activity.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Clients:       h.ClientCount(),
		EventsSent:    h.eventsSent.Load(),
		EventsDropped: h.eventsDropped.Load(),
	}
}
