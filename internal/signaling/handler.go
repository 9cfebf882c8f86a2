package signaling

import (
	"log/slog"
	"sync"

	"github.com/RichatorDEV/webrtc-server/internal/protocol"
)

// Handler routes incoming signaling messages to appropriate channels.
//
// UserList only ever holds the most recent presence list; older lists are
// replaced. The other channels block the handler until read or until Close.
type Handler struct {
	client    *Client
	UserList  chan []string
	Offer     chan *protocol.SignalNotice
	Answer    chan *protocol.SignalNotice
	Candidate chan *protocol.SignalNotice
	Reject    chan string

	// Disconnected is closed once the relay connection is gone.
	Disconnected chan struct{}

	quit      chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:       client,
		UserList:     make(chan []string, 1),
		Offer:        make(chan *protocol.SignalNotice, 4),
		Answer:       make(chan *protocol.SignalNotice, 1),
		Candidate:    make(chan *protocol.SignalNotice, 64),
		Reject:       make(chan string, 4),
		Disconnected: make(chan struct{}),
		quit:         make(chan struct{}),
	}
}

// Start begins listening to incoming messages and routing them. It returns
// when the connection drops or the handler is closed.
func (h *Handler) Start() {
	defer close(h.Disconnected)

	for msg := range h.client.Incoming() {
		switch msg.Type {

		case protocol.TypeUserList:
			h.handleUserList(msg)

		case protocol.TypeOffer:
			h.handleNotice(msg, h.Offer)

		case protocol.TypeAnswer:
			h.handleNotice(msg, h.Answer)

		case protocol.TypeICECandidate:
			h.handleNotice(msg, h.Candidate)

		case protocol.TypeReject:
			h.handleReject(msg)

		default:
			slog.Debug("ignoring message from relay", "type", msg.Type)
		}

		select {
		case <-h.quit:
			return
		default:
		}
	}
}

func (h *Handler) handleUserList(msg *protocol.Message) {
	var users []string
	if err := msg.Decode(&users); err != nil {
		slog.Debug("bad user list", "err", err)
		return
	}

	select {
	case h.UserList <- users:
		return
	default:
	}
	// Replace the stale list; Start is the only sender.
	select {
	case <-h.UserList:
	default:
	}
	h.UserList <- users
}

func (h *Handler) handleNotice(msg *protocol.Message, ch chan *protocol.SignalNotice) {
	var notice protocol.SignalNotice
	if err := msg.Decode(&notice); err != nil || notice.From == "" {
		slog.Debug("bad signaling notice", "type", msg.Type, "err", err)
		return
	}

	select {
	case ch <- &notice:
	case <-h.quit:
	}
}

func (h *Handler) handleReject(msg *protocol.Message) {
	var notice protocol.SignalNotice
	if err := msg.Decode(&notice); err != nil || notice.From == "" {
		slog.Debug("bad reject notice", "err", err)
		return
	}

	select {
	case h.Reject <- notice.From:
	case <-h.quit:
	}
}

// Close stops routing. Pending sends are abandoned.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.quit)
	})
}
