package relay

import (
	"log/slog"

	"github.com/RichatorDEV/webrtc-server/internal/protocol"
)

// Presence pushes the full list of online identities to every registered
// connection.
type Presence struct {
	registry *Registry
	metrics  *Metrics
	logger   *slog.Logger
}

func NewPresence(registry *Registry, metrics *Metrics, logger *slog.Logger) *Presence {
	return &Presence{registry: registry, metrics: metrics, logger: logger}
}

// Announce sends one userList message to every registered connection. Each
// delivery is attempted once and failures are ignored.
func (p *Presence) Announce() {
	identities, conns := p.registry.snapshot()

	msg, err := protocol.New(protocol.TypeUserList, identities)
	if err != nil {
		p.logger.Error("failed to build user list", "err", err)
		return
	}

	p.metrics.Inc(MetricBroadcasts)
	for _, c := range conns {
		if err := c.Deliver(msg); err != nil {
			p.metrics.Inc(MetricDeliveryFailed)
			p.logger.Debug("user list delivery failed", "conn", c.ID(), "err", err)
		}
	}

	p.logger.Debug("presence announced", "online", len(identities))
}
