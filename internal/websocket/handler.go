package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"coursehub/internal/hub"
	"coursehub/pkg/types"
)

// HandlerConfig carries the transport tunables the gateway needs.
type HandlerConfig struct {
	AllowedOrigins   []string
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	SendBuffer       int
	HandshakeTimeout time.Duration
}

// DefaultHandlerConfig returns transport defaults: 30s pings against a
// 60s read deadline so an unresponsive peer is reclaimed within one
// missed probe window.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		SendBuffer:       100,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Handler terminates the WebSocket transport: it admits connections by
// origin, upgrades them, converts wire frames into events for the hub,
// and synthesizes a disconnect when the transport drops.
type Handler struct {
	hub      *hub.Hub
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a gateway handler. The origin policy is fixed at
// construction; changing the allow-list means building a new handler.
func NewHandler(h *hub.Hub, cfg HandlerConfig) *Handler {
	origins := NewOriginPolicy(cfg.AllowedOrigins)

	return &Handler{
		hub: h,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				if origins.Allow(r) {
					return true
				}
				log.Printf("Blocked WebSocket connection from disallowed origin: %q", r.Header.Get("Origin"))
				return false
			},
		},
	}
}

// HandleWebSocket handles a WebSocket connection request. Identity
// (user_id, user_name) comes from query parameters and is trusted as
// handed over; verifying it is explicitly not this layer's job.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error (403 for origin rejection).
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn := NewConnection(
		ws,
		uuid.New().String(),
		r.URL.Query().Get("user_id"),
		r.URL.Query().Get("user_name"),
		h.cfg.SendBuffer,
		h.cfg.WriteTimeout,
	)

	if err := h.hub.Connect(conn); err != nil {
		log.Printf("Failed to register connection %s: %v", conn.ID(), err)
		_ = conn.Close()
		return
	}

	go h.readLoop(conn)
}

// readLoop reads inbound frames until the transport drops, then
// synthesizes a disconnect into the hub. Keep-alive expiry surfaces as
// a read error here and is treated identically to an explicit close.
func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		if err := h.hub.Disconnect(conn.ID(), "connection lost"); err != nil {
			log.Printf("Failed to queue disconnect for %s: %v", conn.ID(), err)
		}
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error on %s: %v", conn.ID(), err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var frame types.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			// Undecodable frames are rejected at the gateway; they
			// never reach the hub queue.
			h.rejectFrame(conn)
			continue
		}

		if err := h.hub.Dispatch(conn.ID(), &frame); err != nil {
			log.Printf("Failed to dispatch frame from %s: %v", conn.ID(), err)
		}
	}
}

func (h *Handler) rejectFrame(conn *Connection) {
	frame, err := types.NewFrame(types.EventError, types.ErrorPayload{
		Code:    types.CodeInvalidRequest,
		Message: "frame must be a JSON object with an event name",
	})
	if err != nil {
		return
	}
	if err := conn.Send(frame); err != nil {
		log.Printf("Failed to send rejection to %s: %v", conn.ID(), err)
	}
}
