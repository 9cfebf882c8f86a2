package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RichatorDEV/webrtc-server/internal/protocol"
)

// Options tune the per-connection pumps.
type Options struct {
	// SendQueue is the capacity of the outbound queue.
	SendQueue int

	// MaxMessageSize is the largest inbound frame accepted.
	MaxMessageSize int64

	// WriteWait is the time allowed to write a message to the peer.
	WriteWait time.Duration

	// PongWait is the time allowed to read the next pong from the peer.
	PongWait time.Duration
}

// DefaultOptions returns the defaults used when a field is zero.
func DefaultOptions() Options {
	return Options{
		SendQueue:      256,
		MaxMessageSize: 64 * 1024, // enough for SDP with many candidates
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendQueue <= 0 {
		o.SendQueue = d.SendQueue
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	return o
}

// pingPeriod must be less than pongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Client is one websocket connection to the relay. Its lifecycle state and
// identity are driven by the Hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	opts Options

	// send is the outbound queue drained by WritePump.
	send chan *protocol.Message

	mu       sync.Mutex
	state    State
	identity string
}

// NewClient wraps conn. The pumps are not started.
func NewClient(hub *Hub, conn *websocket.Conn, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		opts: opts,
		send: make(chan *protocol.Message, opts.SendQueue),
	}
}

// ID implements Conn.
func (c *Client) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the bound identity, or "" before join.
func (c *Client) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Identify moves the client from Unidentified to Identified. The identity is
// fixed for the rest of the connection's life.
func (c *Client) Identify(identity string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdentified:
		return ErrAlreadyIdentified
	case StateClosed:
		return ErrClientClosed
	}
	c.identity = identity
	c.state = StateIdentified
	return nil
}

// Close moves the client to Closed and stops its write pump. It reports
// whether this call performed the transition.
func (c *Client) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return false
	}
	c.state = StateClosed
	close(c.send)
	return true
}

// Deliver implements Conn. It never blocks.
func (c *Client) Deliver(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrClientClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *Client) logger() *slog.Logger {
	return c.hub.logger.With("conn", c.id)
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger().Warn("read failed", "err", err)
			}
			return
		}

		// A bad frame is skipped, the connection stays up.
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger().Debug("malformed message ignored", "err", err)
			continue
		}

		if !c.hub.Dispatch(c, &msg) {
			return
		}
	}
}

// WritePump pumps messages from the send queue to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				// The hub closed the queue.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger().Debug("write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
