package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RichatorDEV/webrtc-server/internal/config"
	"github.com/RichatorDEV/webrtc-server/internal/protocol"
	"github.com/RichatorDEV/webrtc-server/internal/relay"
)

func testConfig() *config.Server {
	return &config.Server{
		ListenAddr:      "127.0.0.1:0",
		SendQueue:       16,
		MaxMessageSize:  config.DefaultMaxMessageSize,
		WriteWait:       time.Second,
		PongWait:        5 * time.Second,
		ShutdownTimeout: time.Second,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg *config.Server) (*httptest.Server, *relay.Hub) {
	t.Helper()
	hub := relay.NewHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(NewMux(hub, cfg, quietLogger()))
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		ts.Close()
	})
	return ts, hub
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func write(t *testing.T, c *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg, err := protocol.New(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, c.WriteJSON(msg))
}

func read(t *testing.T, c *websocket.Conn) *protocol.Message {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg protocol.Message
	require.NoError(t, c.ReadJSON(&msg))
	return &msg
}

// readUntil skips messages until one of msgType arrives.
func readUntil(t *testing.T, c *websocket.Conn, msgType string, match func(*protocol.Message) bool) *protocol.Message {
	t.Helper()
	for {
		msg := read(t, c)
		if msg.Type == msgType && (match == nil || match(msg)) {
			return msg
		}
	}
}

func listOf(names ...string) func(*protocol.Message) bool {
	return func(msg *protocol.Message) bool {
		var got []string
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			return false
		}
		if len(got) != len(names) {
			return false
		}
		seen := map[string]bool{}
		for _, n := range got {
			seen[n] = true
		}
		for _, n := range names {
			if !seen[n] {
				return false
			}
		}
		return true
	}
}

func TestWebSocketJoinAndRelay(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	alice := dial(t, ts)
	write(t, alice, protocol.TypeJoin, "alice")
	readUntil(t, alice, protocol.TypeUserList, listOf("alice"))

	bob := dial(t, ts)
	write(t, bob, protocol.TypeJoin, "bob")
	readUntil(t, bob, protocol.TypeUserList, listOf("alice", "bob"))
	readUntil(t, alice, protocol.TypeUserList, listOf("alice", "bob"))

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)
	write(t, alice, protocol.TypeOffer, protocol.SignalRequest{To: "bob", Offer: offer})

	msg := readUntil(t, bob, protocol.TypeOffer, nil)
	var notice protocol.SignalNotice
	require.NoError(t, json.Unmarshal(msg.Payload, &notice))
	assert.Equal(t, "alice", notice.From)
	assert.JSONEq(t, string(offer), string(notice.Offer))

	write(t, bob, protocol.TypeReject, protocol.SignalRequest{To: "alice"})
	msg = readUntil(t, alice, protocol.TypeReject, nil)
	assert.JSONEq(t, `{"from":"bob"}`, string(msg.Payload))
}

func TestWebSocketDisconnectUpdatesPresence(t *testing.T) {
	ts, hub := newTestServer(t, testConfig())

	alice := dial(t, ts)
	write(t, alice, protocol.TypeJoin, "alice")
	readUntil(t, alice, protocol.TypeUserList, listOf("alice"))

	bob := dial(t, ts)
	write(t, bob, protocol.TypeJoin, "bob")
	readUntil(t, alice, protocol.TypeUserList, listOf("alice", "bob"))

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	bob.Close()

	readUntil(t, alice, protocol.TypeUserList, listOf("alice"))
	assert.Equal(t, []string{"alice"}, hub.Registry().Identities())
}

func TestWebSocketIgnoresGarbageAndEarlyRelay(t *testing.T) {
	ts, hub := newTestServer(t, testConfig())

	bob := dial(t, ts)
	write(t, bob, protocol.TypeJoin, "bob")
	readUntil(t, bob, protocol.TypeUserList, listOf("bob"))

	anon := dial(t, ts)
	write(t, anon, protocol.TypeOffer, protocol.SignalRequest{To: "bob", Offer: json.RawMessage(`{}`)})
	write(t, anon, "dance", nil)
	write(t, anon, protocol.TypeJoin, "anon")

	// The join must still work after ignored messages, and bob must see only
	// the presence update.
	msg := read(t, bob)
	assert.Equal(t, protocol.TypeUserList, msg.Type)
	assert.True(t, listOf("anon", "bob")(msg))
	assert.Equal(t, uint64(1), hub.Metrics().Get(relay.MetricDroppedUnidentified))
}

func TestWebSocketSurvivesMalformedFrames(t *testing.T) {
	ts, hub := newTestServer(t, testConfig())

	alice := dial(t, ts)
	write(t, alice, protocol.TypeJoin, "alice")
	readUntil(t, alice, protocol.TypeUserList, listOf("alice"))

	bob := dial(t, ts)
	write(t, bob, protocol.TypeJoin, "bob")
	readUntil(t, bob, protocol.TypeUserList, listOf("alice", "bob"))

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":5}`)))
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)
	write(t, alice, protocol.TypeOffer, protocol.SignalRequest{To: "bob", Offer: offer})

	// No presence change may reach bob before the offer.
	msg := read(t, bob)
	require.Equal(t, protocol.TypeOffer, msg.Type)
	var notice protocol.SignalNotice
	require.NoError(t, json.Unmarshal(msg.Payload, &notice))
	assert.Equal(t, "alice", notice.From)

	assert.Equal(t, []string{"alice", "bob"}, hub.Registry().Identities())
	assert.Equal(t, uint64(0), hub.Metrics().Get(relay.MetricLeaves))
}

func TestUsersAndStatsEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	alice := dial(t, ts)
	write(t, alice, protocol.TypeJoin, "alice")
	readUntil(t, alice, protocol.TypeUserList, listOf("alice"))

	resp, err := http.Get(ts.URL + "/users")
	require.NoError(t, err)
	defer resp.Body.Close()
	var users []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	assert.Equal(t, []string{"alice"}, users)

	resp2, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var stats Stats
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Online)
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, uint64(1), stats.Counters[relay.MetricJoins])

	resp3, err := http.Post(ts.URL+"/users", "application/json", nil)
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp3.StatusCode)
}

// lockedBuffer is written by handler goroutines and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHandlersLogThroughServerLogger(t *testing.T) {
	var buf lockedBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	hub := relay.NewHub(quietLogger())

	ts := httptest.NewServer(NewMux(hub, testConfig(), logger))
	defer ts.Close()

	// A plain GET cannot be upgraded.
	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Contains(t, buf.String(), "failed to upgrade connection")
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOriginAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://app.example"}
	ts, _ := newTestServer(t, cfg)

	h := http.Header{}
	h.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.Set("Origin", "https://app.example")
	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	require.NoError(t, err)
	c.Close()
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	srv := New(cfg, quietLogger())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/ws"
	var c *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer c.Close()

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}

	// The open websocket is closed by the hub on shutdown.
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = c.ReadMessage()
	assert.Error(t, err)
}
