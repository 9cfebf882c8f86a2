// Package protocol defines the JSON messages exchanged over the signaling
// websocket, shared by the relay server and the command-line peers.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope for every websocket frame in both directions.
// The payload is left raw so the relay never has to understand it.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	TypeJoin         = "join"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeReject       = "reject"

	TypeUserList = "userList"
)

// SignalRequest is the client to server payload for offer, answer,
// ice-candidate and reject. Only the field matching the message type is set.
type SignalRequest struct {
	To        string          `json:"to"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// SignalNotice is the server to client payload delivered to the target of a
// relayed signaling message.
type SignalNotice struct {
	From      string          `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// signalKinds lists the kinds the relay forwards. reject carries no body.
var signalKinds = map[string]struct{}{
	TypeOffer:        {},
	TypeAnswer:       {},
	TypeICECandidate: {},
	TypeReject:       {},
}

// IsSignal reports whether kind is one of the relayable signaling kinds.
func IsSignal(kind string) bool {
	_, ok := signalKinds[kind]
	return ok
}

// Body returns the opaque body carried for kind.
func (r *SignalRequest) Body(kind string) json.RawMessage {
	switch kind {
	case TypeOffer:
		return r.Offer
	case TypeAnswer:
		return r.Answer
	case TypeICECandidate:
		return r.Candidate
	}
	return nil
}

// NewSignalNotice builds the payload delivered to a relay target.
func NewSignalNotice(kind, from string, body json.RawMessage) SignalNotice {
	n := SignalNotice{From: from}
	switch kind {
	case TypeOffer:
		n.Offer = body
	case TypeAnswer:
		n.Answer = body
	case TypeICECandidate:
		n.Candidate = body
	}
	return n
}

// New marshals payload into a Message of the given type.
func New(msgType string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Message{Type: msgType, Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", m.Type, err)
	}
	return nil
}
