package peer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/RichatorDEV/webrtc-server/internal/config"
)

// Signaler delivers signaling bodies to a named peer through the relay.
// *signaling.Client satisfies it.
type Signaler interface {
	Offer(to string, offer any) error
	Answer(to string, answer any) error
	Candidate(to string, candidate any) error
}

// Session is one call with a single remote identity.
//
// Remote candidates that arrive before the remote description is applied
// are held back and added once it is.
type Session struct {
	pc     *pion.PeerConnection
	sig    Signaler
	self   string
	remote string
	logger *slog.Logger

	mu        sync.Mutex
	remoteSet bool
	pending   []pion.ICECandidateInit
	dc        *pion.DataChannel

	open     chan struct{}
	openOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
	messages chan TextPayload
}

func NewSession(api *pion.API, cfg *config.Client, sig Signaler, self, remote string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pc, err := NewPeerConnection(api, cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		pc:       pc,
		sig:      sig,
		self:     self,
		remote:   remote,
		logger:   logger.With("remote", remote),
		open:     make(chan struct{}),
		done:     make(chan struct{}),
		messages: make(chan TextPayload, 32),
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		if err := sig.Candidate(remote, c.ToJSON()); err != nil {
			s.logger.Debug("failed to send candidate", "err", err)
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		s.logger.Debug("peer connection state", "state", state.String())
		if state == pion.PeerConnectionStateFailed || state == pion.PeerConnectionStateClosed {
			s.finish()
		}
	})

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != ChannelLabel {
			return
		}
		s.attach(dc)
	})

	return s, nil
}

func (s *Session) Remote() string { return s.remote }

// Messages delivers text lines received from the remote peer.
func (s *Session) Messages() <-chan TextPayload { return s.messages }

// Opened is closed once the chat channel is open.
func (s *Session) Opened() <-chan struct{} { return s.open }

// Done is closed when the call ends for any reason.
func (s *Session) Done() <-chan struct{} { return s.done }

// Offer opens the chat channel and sends an offer to the remote peer.
func (s *Session) Offer() error {
	dc, err := CreateDataChannel(s.pc, ChannelLabel)
	if err != nil {
		return err
	}
	s.attach(dc)

	desc, err := CreateOffer(s.pc)
	if err != nil {
		return err
	}
	if err := s.sig.Offer(s.remote, desc); err != nil {
		return NewError("send offer", err)
	}
	return nil
}

// Accept applies a remote offer and replies with an answer.
func (s *Session) Accept(offer json.RawMessage) error {
	desc, err := parseDescription(offer, pion.SDPTypeOffer)
	if err != nil {
		return err
	}

	answer, err := CreateAnswer(s.pc, desc)
	if err != nil {
		return err
	}
	s.remoteApplied()

	if err := s.sig.Answer(s.remote, answer); err != nil {
		return NewError("send answer", err)
	}
	return nil
}

// HandleAnswer applies the remote answer to an offer sent earlier.
func (s *Session) HandleAnswer(answer json.RawMessage) error {
	desc, err := parseDescription(answer, pion.SDPTypeAnswer)
	if err != nil {
		return err
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", err)
	}
	s.remoteApplied()
	return nil
}

// AddCandidate adds a trickled remote candidate, or holds it until the
// remote description is known.
func (s *Session) AddCandidate(raw json.RawMessage) error {
	var ice pion.ICECandidateInit
	if err := json.Unmarshal(raw, &ice); err != nil {
		return NewError("parse ICE candidate", err)
	}

	s.mu.Lock()
	if !s.remoteSet {
		s.pending = append(s.pending, ice)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.pc.AddICECandidate(ice); err != nil {
		return NewError("add ICE candidate", err)
	}
	return nil
}

func (s *Session) remoteApplied() {
	s.mu.Lock()
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, ice := range pending {
		if err := s.pc.AddICECandidate(ice); err != nil {
			s.logger.Debug("failed to add buffered candidate", "err", err)
		}
	}
}

// WaitOpen blocks until the chat channel is open.
func (s *Session) WaitOpen(ctx context.Context) error {
	select {
	case <-s.open:
		return nil
	case <-s.done:
		return NewError("open channel", ErrConnectionFailed)
	case <-ctx.Done():
		return WrapError("open channel", ErrTimeout, ctx.Err().Error())
	}
}

// SendText sends one chat line to the remote peer.
func (s *Session) SendText(body string) error {
	msg, err := NewText(s.self, body)
	if err != nil {
		return NewError("encode text", err)
	}
	return s.send(msg)
}

// Bye tells the remote peer the call is over.
func (s *Session) Bye() error {
	msg, err := NewMessage(MessageTypeBye, nil)
	if err != nil {
		return err
	}
	return s.send(msg)
}

func (s *Session) send(msg Message) error {
	s.mu.Lock()
	dc := s.dc
	s.mu.Unlock()

	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return ErrChannelNotOpen
	}

	b, err := msg.Encode()
	if err != nil {
		return NewError("encode message", err)
	}
	if err := dc.Send(b); err != nil {
		return NewError("send message", err)
	}
	return nil
}

func (s *Session) attach(dc *pion.DataChannel) {
	s.mu.Lock()
	s.dc = dc
	s.mu.Unlock()

	dc.OnOpen(func() {
		s.openOnce.Do(func() { close(s.open) })
	})
	dc.OnClose(s.finish)
	dc.OnMessage(func(m pion.DataChannelMessage) {
		s.receive(m.Data)
	})
}

func (s *Session) receive(data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		s.logger.Debug("bad data channel message", "err", err)
		return
	}

	switch msg.Type {
	case MessageTypeText:
		var text TextPayload
		if err := msg.DecodePayload(&text); err != nil {
			s.logger.Debug("bad text payload", "err", err)
			return
		}
		select {
		case s.messages <- text:
		case <-s.done:
		}

	case MessageTypeBye:
		s.finish()

	default:
		s.logger.Debug("ignoring data channel message", "type", msg.Type)
	}
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Close ends the call and releases the peer connection.
func (s *Session) Close() error {
	s.finish()
	return s.pc.Close()
}

func parseDescription(raw json.RawMessage, want pion.SDPType) (pion.SessionDescription, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, NewError("parse session description", err)
	}
	if desc.Type != want {
		return desc, WrapError("parse session description", ErrUnexpectedSignal, desc.Type.String())
	}
	return desc, nil
}
