package peer

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Data channel message types.
const (
	MessageTypeText = "text"
	MessageTypeBye  = "bye"
)

// Message represents all data channel messages between peers.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// TextPayload is a chat line.
type TextPayload struct {
	From   string `msgpack:"from"`
	Body   string `msgpack:"body"`
	SentAt int64  `msgpack:"sentAt"`
}

// Time returns when the line was sent.
func (p TextPayload) Time() time.Time {
	return time.UnixMilli(p.SentAt)
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:    t,
		Payload: b,
	}, nil
}

// NewText builds a text message stamped with the current time.
func NewText(from, body string) (Message, error) {
	return NewMessage(MessageTypeText, TextPayload{
		From:   from,
		Body:   body,
		SentAt: time.Now().UnixMilli(),
	})
}

// Encode returns the wire form of m.
func (m Message) Encode() ([]byte, error) {
	return msgpack.Marshal(m)
}

// DecodeMessage parses a data channel frame.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	err := msgpack.Unmarshal(data, &m)
	return m, err
}
