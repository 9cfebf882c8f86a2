package peer

import (
	"errors"
	"fmt"
)

var (
	ErrCallRejected     = errors.New("call rejected by peer")
	ErrPeerOffline      = errors.New("peer is not online")
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrSignalingClosed  = errors.New("signaling connection closed")
	ErrTimeout          = errors.New("timeout")
	ErrChannelNotOpen   = errors.New("channel not open")
	ErrConnectionFailed = errors.New("connection failed")
	ErrUnexpectedSignal = errors.New("unexpected signal")
)

type CallError struct {
	Op      string
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}
