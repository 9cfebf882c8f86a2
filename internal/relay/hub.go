// Package relay is the presence and signaling core: it tracks which
// identities are online, broadcasts the presence list on every change, and
// forwards offers, answers, candidates and rejections between connections by
// identity.
package relay

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/RichatorDEV/webrtc-server/internal/protocol"
)

type inbound struct {
	client *Client
	msg    *protocol.Message
}

// Hub is the single goroutine that drives every connection's lifecycle.
// Connects, disconnects and inbound messages arrive on unbuffered channels,
// so the messages of one connection are handled in the order they were read.
type Hub struct {
	registry *Registry
	presence *Presence
	router   *Router
	metrics  *Metrics
	logger   *slog.Logger

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound

	// clients is owned by the Run goroutine.
	clients     map[*Client]struct{}
	connections atomic.Int64

	done chan struct{}
}

// NewHub creates a Hub with an empty registry. A nil logger uses
// slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	registry := NewRegistry()
	metrics := NewMetrics()

	return &Hub{
		registry:   registry,
		presence:   NewPresence(registry, metrics, logger),
		router:     NewRouter(registry, metrics, logger),
		metrics:    metrics,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

func (h *Hub) Metrics() *Metrics { return h.metrics }

// Connections returns the number of open connections, identified or not.
func (h *Hub) Connections() int { return int(h.connections.Load()) }

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Register hands a freshly connected client to the hub. It reports false if
// the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister tells the hub that c's transport has closed.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Dispatch hands an inbound message from c to the hub. It reports false if
// the hub has stopped.
func (h *Hub) Dispatch(c *Client, msg *protocol.Message) bool {
	select {
	case h.inbound <- inbound{client: c, msg: msg}:
		return true
	case <-h.done:
		return false
	}
}

// Run processes hub events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			c.Close()
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub stopping", "connections", len(h.clients))
			return

		case c := <-h.register:
			h.connect(c)

		case c := <-h.unregister:
			h.disconnect(c)

		case in := <-h.inbound:
			h.handle(in.client, in.msg)
		}
	}
}

func (h *Hub) connect(c *Client) {
	h.clients[c] = struct{}{}
	h.connections.Store(int64(len(h.clients)))
	h.logger.Debug("client connected", "conn", c.ID())
}

// disconnect performs the transition to Closed. Repeated calls are no-ops.
func (h *Hub) disconnect(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.connections.Store(int64(len(h.clients)))

	c.Close()
	if identity, ok := h.registry.Unregister(c); ok {
		h.metrics.Inc(MetricLeaves)
		h.logger.Info("client left", "conn", c.ID(), "identity", identity)
	} else {
		h.logger.Debug("client disconnected", "conn", c.ID(), "identity", c.Identity())
	}

	// Announce even when nothing was unregistered.
	h.presence.Announce()
}

func (h *Hub) handle(c *Client, msg *protocol.Message) {
	if c.State() == StateClosed {
		return
	}

	switch {
	case msg.Type == protocol.TypeJoin:
		h.join(c, msg)
	case protocol.IsSignal(msg.Type):
		h.signal(c, msg)
	default:
		h.logger.Debug("unknown message type", "conn", c.ID(), "type", msg.Type)
	}
}

func (h *Hub) join(c *Client, msg *protocol.Message) {
	var identity string
	if err := msg.Decode(&identity); err != nil {
		h.logger.Debug("bad join payload", "conn", c.ID(), "err", err)
		return
	}

	if err := c.Identify(identity); err != nil {
		h.logger.Debug("join ignored", "conn", c.ID(), "identity", identity, "err", err)
		return
	}

	if displaced := h.registry.Register(identity, c); displaced != nil {
		h.metrics.Inc(MetricDisplaced)
		h.logger.Warn("identity taken over by new connection",
			"identity", identity, "conn", c.ID(), "displaced_conn", displaced.ID())
	}
	h.metrics.Inc(MetricJoins)
	h.logger.Info("client joined", "conn", c.ID(), "identity", identity)

	h.presence.Announce()
}

func (h *Hub) signal(c *Client, msg *protocol.Message) {
	if c.State() != StateIdentified {
		h.metrics.Inc(MetricDroppedUnidentified)
		h.logger.Debug("relay before join ignored", "conn", c.ID(), "type", msg.Type)
		return
	}

	var req protocol.SignalRequest
	if err := msg.Decode(&req); err != nil {
		h.logger.Debug("bad signal payload", "conn", c.ID(), "type", msg.Type, "err", err)
		return
	}
	if req.To == "" {
		h.logger.Debug("signal without target ignored", "conn", c.ID(), "type", msg.Type)
		return
	}

	h.router.Relay(msg.Type, c.Identity(), req.To, req.Body(msg.Type))
}
