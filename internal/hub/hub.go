// Package hub serializes all room and registry mutations through a
// single goroutine consuming one ordered queue of inbound events.
// Connects, frames, and disconnects from one connection share the queue,
// so they are processed in arrival order; events within one room are
// delivered to members in processing order. No handler blocks on I/O
// while it runs: wire delivery goes through per-connection buffered
// write pumps after the mutation completes.
package hub

import (
	"context"
	"log"
	"sync"

	"coursehub/internal/registry"
	"coursehub/internal/router"
	"coursehub/pkg/types"
)

type eventType int

const (
	eventConnect eventType = iota
	eventFrame
	eventDisconnect
)

// event is the tagged union carried on the hub queue. Everything rides
// one channel; separate channels per kind would let the select loop
// reorder a connection's events.
type event struct {
	typ    eventType
	conn   registry.Conn
	connID string
	frame  *types.Frame
	reason string
}

// Hub owns the event queue feeding the router. The gateway never
// touches registry or directory state directly; it only enqueues.
type Hub struct {
	eventCh    chan event
	shutdownCh chan struct{}

	router *router.Router

	running bool
	mu      sync.RWMutex
}

// NewHub creates a new hub. The queue buffer absorbs message bursts
// from a full classroom without blocking gateway read loops.
func NewHub(r *router.Router) *Hub {
	return &Hub{
		eventCh: make(chan event, 1024),
		router:  r,
	}
}

// Start begins hub processing. A stopped hub can be started again; the
// shutdown channel belongs to one run.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.shutdownCh = make(chan struct{})

	log.Println("Starting event hub...")
	go h.run(ctx, h.shutdownCh)
	return nil
}

// Stop gracefully shuts down the hub.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	log.Println("Stopping event hub...")
	close(h.shutdownCh)
	return nil
}

// Connect queues a new connection for registration and acknowledgment.
func (h *Hub) Connect(conn registry.Conn) error {
	return h.enqueue(event{typ: eventConnect, conn: conn})
}

// Dispatch queues one decoded inbound frame for processing.
func (h *Hub) Dispatch(connID string, frame *types.Frame) error {
	return h.enqueue(event{typ: eventFrame, connID: connID, frame: frame})
}

// Disconnect queues a connection teardown. The gateway calls this for
// explicit closes, read errors, and keep-alive expiry alike.
func (h *Hub) Disconnect(connID, reason string) error {
	return h.enqueue(event{typ: eventDisconnect, connID: connID, reason: reason})
}

func (h *Hub) enqueue(e event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.running {
		return ErrHubNotRunning
	}

	select {
	case h.eventCh <- e:
		return nil
	default:
		return ErrEventChannelFull
	}
}

// run is the single goroutine that owns all state mutation. One queue
// guarantees one event completes fully before the next begins, in the
// order the gateway enqueued them.
func (h *Hub) run(ctx context.Context, shutdownCh <-chan struct{}) {
	defer log.Println("Hub processing stopped")

	for {
		select {
		case e := <-h.eventCh:
			h.handle(e)

		case <-shutdownCh:
			log.Println("Hub shutdown requested")
			return

		case <-ctx.Done():
			log.Println("Hub context cancelled")
			return
		}
	}
}

func (h *Hub) handle(e event) {
	switch e.typ {
	case eventConnect:
		if e.conn == nil {
			log.Println("Attempted to register nil connection")
			return
		}
		h.router.HandleConnect(e.conn)

	case eventFrame:
		h.router.HandleFrame(e.connID, e.frame)

	case eventDisconnect:
		h.router.HandleDisconnect(e.connID, e.reason)
	}
}
