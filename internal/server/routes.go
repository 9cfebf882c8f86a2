package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/RichatorDEV/webrtc-server/internal/config"
	"github.com/RichatorDEV/webrtc-server/internal/relay"
)

// Stats is the body served on /stats.
type Stats struct {
	Online      int               `json:"online"`
	Connections int               `json:"connections"`
	Counters    map[string]uint64 `json:"counters"`
}

// NewMux wires the relay routes. A nil logger means slog.Default().
func NewMux(hub *relay.Hub, cfg *config.Server, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheckHandler)
	mux.HandleFunc("/users", usersHandler(hub, logger))
	mux.HandleFunc("/stats", statsHandler(hub, logger))
	mux.HandleFunc("/ws", ServeWs(hub, cfg, logger))
	return mux
}

// Health Check endpoint
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

func usersHandler(hub *relay.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, hub.Registry().Identities())
	}
}

func statsHandler(hub *relay.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, Stats{
			Online:      hub.Registry().Len(),
			Connections: hub.Connections(),
			Counters:    hub.Metrics().Snapshot(),
		})
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write response", "err", err)
	}
}

func newUpgrader(cfg *config.Server) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	anyOrigin := cfg.AllowsAnyOrigin()

	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			if anyOrigin {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin.
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// ServeWs returns an http.HandlerFunc that upgrades to a websocket and hands
// the connection to the hub.
func ServeWs(hub *relay.Hub, cfg *config.Server, logger *slog.Logger) http.HandlerFunc {
	upgrader := newUpgrader(cfg)
	opts := relay.Options{
		SendQueue:      cfg.SendQueue,
		MaxMessageSize: cfg.MaxMessageSize,
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "err", err)
			return
		}

		client := relay.NewClient(hub, conn, opts)
		if !hub.Register(client) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}

		// The pumps own the connection from here on.
		go client.WritePump()
		go client.ReadPump()
	}
}
