// Package signaling is the peer side of the relay protocol: a websocket
// client and a handler that sorts incoming messages by kind.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RichatorDEV/webrtc-server/internal/dns"
	"github.com/RichatorDEV/webrtc-server/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("signaling connection closed")

// Client manages the WebSocket connection to the relay.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *protocol.Message
	outgoing  chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new signaling client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *protocol.Message, 16),
		outgoing:  make(chan *protocol.Message, 16),
		done:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	// Hostnames go through the public DNS fallback.
	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = dns.DialContext

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)

	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// SendMessage queues a message for the server.
func (c *Client) SendMessage(msg *protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Send builds a message of msgType around payload and queues it.
func (c *Client) Send(msgType string, payload any) error {
	msg, err := protocol.New(msgType, payload)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// Join announces identity to the relay.
func (c *Client) Join(identity string) error {
	return c.Send(protocol.TypeJoin, identity)
}

// Offer sends an SDP offer to the peer named to.
func (c *Client) Offer(to string, offer any) error {
	body, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return c.Send(protocol.TypeOffer, protocol.SignalRequest{To: to, Offer: body})
}

// Answer sends an SDP answer to the peer named to.
func (c *Client) Answer(to string, answer any) error {
	body, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return c.Send(protocol.TypeAnswer, protocol.SignalRequest{To: to, Answer: body})
}

// Candidate sends a trickled ICE candidate to the peer named to.
func (c *Client) Candidate(to string, candidate any) error {
	body, err := json.Marshal(candidate)
	if err != nil {
		return err
	}
	return c.Send(protocol.TypeICECandidate, protocol.SignalRequest{To: to, Candidate: body})
}

// Reject declines a call from the peer named to.
func (c *Client) Reject(to string) error {
	return c.Send(protocol.TypeReject, protocol.SignalRequest{To: to})
}

// Incoming returns the channel for receiving messages. It is closed when
// the connection drops.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
