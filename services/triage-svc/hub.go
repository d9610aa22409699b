package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

const (
	eventNewCall     = "new_call"
	eventCallUpdate  = "call_update"
	eventStatsUpdate = "stats_update"
)

var (
	broadcastDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triage",
		Name:      "broadcast_dropped_total",
		Help:      "Events dropped because the hub or a client buffer was full",
	}, []string{"where"})
	wsClientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "triage",
		Name:      "ws_clients",
		Help:      "Connected live-dashboard clients",
	})
)

// eventEnvelope wraps every published event. The ID plus timestamp let
// subscribers deduplicate at-least-once deliveries.
type eventEnvelope struct {
	Event     string    `json:"event"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

type callUpdatePayload struct {
	CallSid      string           `json:"call_sid"`
	Status       common.CallState `json:"status"`
	AssignedUnit string           `json:"assigned_unit,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

const (
	hubQueueSize     = 256
	clientBufferSize = 32
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 45 * time.Second
)

// Hub fans published events out to connected websocket clients. Publishing
// never blocks: the hub queue and per-client buffers are bounded and drop
// on overflow, because the dashboard resyncs on its next poll anyway.
// The hub holds none of the session manager's locks.
type Hub struct {
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan eventEnvelope

	// statsFn produces the payload for the stats_update sent to clients
	// on connect and on the periodic tick.
	statsFn func(ctx context.Context) any
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(statsFn func(ctx context.Context) any) *Hub {
	return &Hub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan eventEnvelope, hubQueueSize),
		statsFn:    statsFn,
	}
}

// Publish queues an event for fan-out, dropping when the hub is saturated.
func (h *Hub) Publish(event string, payload any) {
	if h == nil {
		return
	}
	envelope := eventEnvelope{
		Event:     event,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	select {
	case h.broadcast <- envelope:
	default:
		broadcastDroppedTotal.WithLabelValues("hub").Inc()
		slog.Warn("broadcast queue full, dropping event", "event", event)
	}
}

// Run owns the client set. It must be started before ServeWS is routed.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*wsClient]struct{})
	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	closeClient := func(c *wsClient) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			wsClientsGauge.Set(float64(len(clients)))
		}
	}

	send := func(c *wsClient, data []byte) {
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop it rather than backing up the hub.
			broadcastDroppedTotal.WithLabelValues("client").Inc()
			closeClient(c)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				closeClient(c)
			}
			return

		case c := <-h.register:
			clients[c] = struct{}{}
			wsClientsGauge.Set(float64(len(clients)))
			if h.statsFn != nil {
				if data, err := marshalEnvelope(eventStatsUpdate, h.statsFn(ctx)); err == nil {
					send(c, data)
				}
			}

		case c := <-h.unregister:
			closeClient(c)

		case envelope := <-h.broadcast:
			data, err := json.Marshal(envelope)
			if err != nil {
				slog.Error("failed to encode broadcast event", "event", envelope.Event, "error", err)
				continue
			}
			for c := range clients {
				send(c, data)
			}

		case <-statsTicker.C:
			if h.statsFn == nil || len(clients) == 0 {
				continue
			}
			data, err := marshalEnvelope(eventStatsUpdate, h.statsFn(ctx))
			if err != nil {
				continue
			}
			for c := range clients {
				send(c, data)
			}
		}
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	return json.Marshal(eventEnvelope{
		Event:     event,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Operator dashboards connect from a separate origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an operator dashboard connection and attaches it to the
// hub.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
	return nil
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages; the channel is server-to-client only.
// It exists to notice disconnects and answer pings.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
