package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/RichatorDEV/webrtc-server/internal/protocol"
)

// Router forwards signaling messages to a connection addressed by identity.
type Router struct {
	registry *Registry
	metrics  *Metrics
	logger   *slog.Logger
}

func NewRouter(registry *Registry, metrics *Metrics, logger *slog.Logger) *Router {
	return &Router{registry: registry, metrics: metrics, logger: logger}
}

// Relay delivers a message of the given kind carrying body and the sender's
// identity to the connection registered as to. Unknown targets are dropped
// silently; the sender is never told. It reports whether the message was
// handed to the target's connection.
func (r *Router) Relay(kind, from, to string, body json.RawMessage) bool {
	if !protocol.IsSignal(kind) {
		r.logger.Debug("relay of unknown kind ignored", "type", kind)
		return false
	}

	target, ok := r.registry.Lookup(to)
	if !ok {
		r.metrics.Inc(MetricDroppedNoTarget)
		r.logger.Debug("relay target not online", "type", kind, "from", from, "to", to)
		return false
	}

	msg, err := protocol.New(kind, protocol.NewSignalNotice(kind, from, body))
	if err != nil {
		r.logger.Debug("relay payload rejected", "type", kind, "from", from, "err", err)
		return false
	}

	if err := target.Deliver(msg); err != nil {
		r.metrics.Inc(MetricDeliveryFailed)
		r.logger.Debug("relay delivery failed", "type", kind, "from", from, "to", to, "err", err)
		return false
	}

	r.metrics.Inc(MetricRelayed)
	r.logger.Debug("relayed", "type", kind, "from", from, "to", to)
	return true
}
