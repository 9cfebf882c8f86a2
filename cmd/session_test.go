package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RichatorDEV/webrtc-server/internal/config"
	"github.com/RichatorDEV/webrtc-server/internal/peer"
	"github.com/RichatorDEV/webrtc-server/internal/relay"
	"github.com/RichatorDEV/webrtc-server/internal/server"
)

func startRelay(t *testing.T) *config.Client {
	t.Helper()
	hub := relay.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(server.NewMux(hub, &config.Server{
		SendQueue:       16,
		MaxMessageSize:  config.DefaultMaxMessageSize,
		WriteWait:       time.Second,
		PongWait:        5 * time.Second,
		ShutdownTimeout: time.Second,
	}, nil))
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		ts.Close()
	})

	return &config.Client{ServerURL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"}
}

func join(t *testing.T, cfg *config.Client, name string) *ConnectionContext {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cc, err := NewConnectionContext(ctx, cfg, name)
	require.NoError(t, err)
	t.Cleanup(cc.Close)
	return cc
}

func TestWaitForOnline(t *testing.T) {
	cfg := startRelay(t)
	alice := join(t, cfg, "alice")

	done := make(chan error, 1)
	go func() {
		done <- alice.WaitForOnline(context.Background(), "bob", 2*time.Second)
	}()

	time.Sleep(50 * time.Millisecond)
	join(t, cfg, "bob")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("WaitForOnline did not return")
	}
	assert.Contains(t, alice.Users(), "bob")
}

func TestWaitForOnlineTimesOut(t *testing.T) {
	cfg := startRelay(t)
	alice := join(t, cfg, "alice")

	err := alice.WaitForOnline(context.Background(), "nobody", 200*time.Millisecond)
	assert.ErrorIs(t, err, peer.ErrPeerOffline)
}

func TestRunSessionEndsOnReject(t *testing.T) {
	cfg := startRelay(t)
	alice := join(t, cfg, "alice")
	bob := join(t, cfg, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, alice.WaitForOnline(ctx, "bob", 2*time.Second))

	sess, err := peer.NewSession(alice.API, alice.Config, alice.Client, "alice", "bob", nil)
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.Offer())

	go func() {
		select {
		case n := <-bob.Handler.Offer:
			bob.Client.Reject(n.From)
		case <-ctx.Done():
		}
	}()

	err = alice.RunSession(ctx, sess, callHooks{})
	assert.ErrorIs(t, err, peer.ErrCallRejected)
}

func TestRunSessionEndsWhenRemoteLeaves(t *testing.T) {
	cfg := startRelay(t)
	alice := join(t, cfg, "alice")
	bob := join(t, cfg, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, alice.WaitForOnline(ctx, "bob", 2*time.Second))

	sess, err := peer.NewSession(alice.API, alice.Config, alice.Client, "alice", "bob", nil)
	require.NoError(t, err)
	defer sess.Close()

	bob.Close()

	err = alice.RunSession(ctx, sess, callHooks{})
	assert.ErrorIs(t, err, peer.ErrPeerDisconnected)
}

func TestEarlyCandidatesAreCapped(t *testing.T) {
	early := earlyCandidates{}
	for i := 0; i < maxEarlyCandidates+10; i++ {
		early.add("bob", json.RawMessage(`{}`))
	}
	assert.Len(t, early["bob"], maxEarlyCandidates)
}

func TestEchoLine(t *testing.T) {
	assert.Equal(t, "bob: hi", echoLine("bob", "hi"))
}
