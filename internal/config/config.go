// Package config loads server and client settings. Values come from cobra
// flags bound into viper, then environment variables, then defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultPort            = "3000"
	DefaultServerURL       = "ws://localhost:3000/ws"
	DefaultSTUN            = "stun:stun.l.google.com:19302"
	DefaultSendQueue       = 256
	DefaultMaxMessageSize  = 64 * 1024
	DefaultWriteWait       = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultServerLogLevel  = "info"

	// EnvPrefix prefixes every environment variable read through viper,
	// e.g. WEBRTC_SERVER_SEND_QUEUE.
	EnvPrefix = "WEBRTC_SERVER"
)

// Viper keys. They match the cobra flag names.
const (
	KeyListen          = "listen"
	KeyAllowedOrigins  = "allowed-origins"
	KeySendQueue       = "send-queue"
	KeyMaxMessageSize  = "max-message-size"
	KeyWriteWait       = "write-wait"
	KeyPongWait        = "pong-wait"
	KeyShutdownTimeout = "shutdown-timeout"
	KeyLogLevel        = "log-level"

	KeyServer   = "server"
	KeySTUN     = "stun"
	KeyTURN     = "turn"
	KeyTURNUser = "turn-user"
	KeyTURNPass = "turn-pass"
	KeyRelay    = "relay"
)

var ErrInvalid = errors.New("invalid configuration")

// Server holds relay server settings.
type Server struct {
	ListenAddr      string
	AllowedOrigins  []string
	SendQueue       int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// Client holds settings for the command-line peers.
type Client struct {
	// ServerURL is the relay websocket endpoint.
	ServerURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// NewViper returns a viper instance reading WEBRTC_SERVER_* variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadServer reads server settings from v.
//
// The listen address resolves as: --listen flag or WEBRTC_SERVER_LISTEN,
// then ":$PORT", then ":3000".
func LoadServer(v *viper.Viper) (*Server, error) {
	v.SetDefault(KeySendQueue, DefaultSendQueue)
	v.SetDefault(KeyMaxMessageSize, DefaultMaxMessageSize)
	v.SetDefault(KeyWriteWait, DefaultWriteWait)
	v.SetDefault(KeyPongWait, DefaultPongWait)
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)
	v.SetDefault(KeyLogLevel, DefaultServerLogLevel)

	listen := v.GetString(KeyListen)
	if listen == "" {
		if port := os.Getenv("PORT"); port != "" {
			listen = ":" + port
		} else {
			listen = ":" + DefaultPort
		}
	}

	cfg := &Server{
		ListenAddr:      listen,
		AllowedOrigins:  splitList(v.GetStringSlice(KeyAllowedOrigins)),
		SendQueue:       v.GetInt(KeySendQueue),
		MaxMessageSize:  v.GetInt64(KeyMaxMessageSize),
		WriteWait:       v.GetDuration(KeyWriteWait),
		PongWait:        v.GetDuration(KeyPongWait),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
		LogLevel:        v.GetString(KeyLogLevel),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Server) validate() error {
	switch {
	case c.SendQueue <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, KeySendQueue, c.SendQueue)
	case c.MaxMessageSize <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, KeyMaxMessageSize, c.MaxMessageSize)
	case c.WriteWait <= 0:
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, KeyWriteWait, c.WriteWait)
	case c.PongWait <= time.Second:
		return fmt.Errorf("%w: %s must exceed 1s, got %s", ErrInvalid, KeyPongWait, c.PongWait)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, KeyShutdownTimeout, c.ShutdownTimeout)
	}
	return nil
}

// AllowsAnyOrigin reports whether origin checks are disabled.
func (c *Server) AllowsAnyOrigin() bool {
	if len(c.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// LoadClient reads peer settings from v.
func LoadClient(v *viper.Viper) (*Client, error) {
	v.SetDefault(KeySTUN, DefaultSTUN)

	raw := v.GetString(KeyServer)
	if raw == "" {
		raw = DefaultServerURL
	}
	serverURL, err := NormalizeServerURL(raw)
	if err != nil {
		return nil, err
	}

	cfg := &Client{
		ServerURL:  serverURL,
		STUNServer: v.GetString(KeySTUN),
		TURNServer: v.GetString(KeyTURN),
		TURNUser:   v.GetString(KeyTURNUser),
		TURNPass:   v.GetString(KeyTURNPass),
		ForceRelay: v.GetBool(KeyRelay),
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("%w: cannot force relay mode without TURN server configured", ErrInvalid)
	}
	return cfg, nil
}

// NormalizeServerURL turns a host, http(s) URL or ws(s) URL into the relay's
// websocket endpoint. http maps to ws, https to wss; a bare host gets ws.
func NormalizeServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: server URL %q", ErrInvalid, raw)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalid, u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// HTTPBase returns the http(s) origin of the relay, used for the JSON
// endpoints next to /ws.
func (c *Client) HTTPBase() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}

// GetSTUNServers returns STUN server URLs, or nil when disabled.
func (c *Client) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Client) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Client) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// splitList accepts both repeated values and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
