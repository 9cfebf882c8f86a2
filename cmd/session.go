package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/RichatorDEV/webrtc-server/internal/config"
	"github.com/RichatorDEV/webrtc-server/internal/peer"
	"github.com/RichatorDEV/webrtc-server/internal/signaling"
)

const (
	flagName = "name"

	defaultOnlineWait = 30 * time.Second
	defaultOpenWait   = 30 * time.Second

	maxEarlyCandidates = 64
)

// errHangUp ends a call normally from inside a hook.
var errHangUp = errors.New("hang up")

// addClientFlags registers the relay and ICE flags shared by peer commands.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String(config.KeyServer, "", "Relay URL (default \""+config.DefaultServerURL+"\")")
	f.String(config.KeySTUN, config.DefaultSTUN, "STUN server; empty disables STUN")
	f.String(config.KeyTURN, "", "TURN server host")
	f.String(config.KeyTURNUser, "", "TURN username")
	f.String(config.KeyTURNPass, "", "TURN password")
	f.BoolP(config.KeyRelay, "r", false, "Force relay mode (needs --turn)")
}

func loadClientConfig(cmd *cobra.Command) (*config.Client, error) {
	v := config.NewViper()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	cfg, err := config.LoadClient(v)
	if err != nil {
		return nil, peer.NewError("load config", err)
	}
	return cfg, nil
}

// ConnectionContext is a joined relay connection shared by the peer commands.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Config  *config.Client
	API     *pion.API
	Name    string

	users []string
}

func NewConnectionContext(ctx context.Context, cfg *config.Client, name string) (*ConnectionContext, error) {
	client := signaling.NewClient(cfg.ServerURL)
	if err := client.Connect(ctx); err != nil {
		return nil, peer.NewError("connect to server", err)
	}

	handler := signaling.NewHandler(client)
	go handler.Start()

	c := &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
		API:     peer.NewAPI(slog.Default()),
		Name:    name,
	}

	if err := client.Join(name); err != nil {
		c.Close()
		return nil, peer.NewError("join", err)
	}
	return c, nil
}

func (c *ConnectionContext) Close() {
	if c.Handler != nil {
		c.Handler.Close()
	}
	if c.Client != nil {
		c.Client.Close()
	}
}

// Users returns the most recent presence list seen.
func (c *ConnectionContext) Users() []string { return c.users }

// WaitForUsers returns the next presence list.
func (c *ConnectionContext) WaitForUsers(ctx context.Context) ([]string, error) {
	select {
	case users := <-c.Handler.UserList:
		c.users = users
		return users, nil
	case <-c.Handler.Disconnected:
		return nil, peer.ErrSignalingClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitForOnline blocks until target appears in a presence list.
func (c *ConnectionContext) WaitForOnline(ctx context.Context, target string, timeout time.Duration) error {
	if slices.Contains(c.users, target) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		users, err := c.WaitForUsers(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return peer.WrapError("wait for peer", peer.ErrPeerOffline, target)
		}
		if err != nil {
			return err
		}
		if slices.Contains(users, target) {
			return nil
		}
	}
}

// callHooks customise RunSession for each command.
type callHooks struct {
	// onOpen runs once the data channel opens.
	onOpen func() error
	// onText runs for each received line. Returning errHangUp ends the call.
	onText func(peer.TextPayload) error
	// lines, when set, are sent as chat lines. Closing it ends the call.
	lines <-chan string
}

// RunSession feeds relay traffic for sess's remote into it until the call
// ends. Offers from anyone else are rejected while the call is up.
func (c *ConnectionContext) RunSession(ctx context.Context, sess *peer.Session, hooks callHooks) error {
	remote := sess.Remote()
	opened := sess.Opened()
	openTimer := time.NewTimer(defaultOpenWait)
	defer openTimer.Stop()
	openTimeout := openTimer.C

	for {
		select {
		case <-ctx.Done():
			sess.Bye()
			return nil

		case n := <-c.Handler.Answer:
			if n.From != remote {
				continue
			}
			if err := sess.HandleAnswer(n.Answer); err != nil {
				return err
			}

		case n := <-c.Handler.Candidate:
			if n.From != remote {
				continue
			}
			if err := sess.AddCandidate(n.Candidate); err != nil {
				slog.Debug("dropping remote candidate", "from", n.From, "err", err)
			}

		case from := <-c.Handler.Reject:
			if from == remote {
				return peer.WrapError("call", peer.ErrCallRejected, remote)
			}

		case n := <-c.Handler.Offer:
			slog.Debug("busy, rejecting offer", "from", n.From)
			c.Client.Reject(n.From)

		case users := <-c.Handler.UserList:
			c.users = users
			if !slices.Contains(users, remote) {
				return peer.WrapError("call", peer.ErrPeerDisconnected, remote)
			}

		case <-c.Handler.Disconnected:
			return peer.ErrSignalingClosed

		case <-opened:
			opened = nil
			openTimeout = nil
			if hooks.onOpen != nil {
				if err := hooks.onOpen(); err != nil {
					return endCall(sess, err)
				}
			}

		case <-openTimeout:
			return peer.WrapError("open channel", peer.ErrTimeout, remote)

		case text := <-sess.Messages():
			if hooks.onText != nil {
				if err := hooks.onText(text); err != nil {
					return endCall(sess, err)
				}
			}

		case line, ok := <-hooks.lines:
			if !ok {
				return endCall(sess, errHangUp)
			}
			if err := sess.SendText(line); err != nil {
				return err
			}

		case <-sess.Done():
			if opened == nil {
				return nil
			}
			return peer.WrapError("call", peer.ErrConnectionFailed, remote)
		}
	}
}

func endCall(sess *peer.Session, err error) error {
	sess.Bye()
	if errors.Is(err, errHangUp) {
		return nil
	}
	return err
}

// earlyCandidates holds candidates that arrive before the offer they belong
// to has been picked up.
type earlyCandidates map[string][]json.RawMessage

func (e earlyCandidates) add(n string, raw json.RawMessage) {
	if len(e[n]) < maxEarlyCandidates {
		e[n] = append(e[n], raw)
	}
}

func (e earlyCandidates) flush(from string, sess *peer.Session) {
	for _, raw := range e[from] {
		if err := sess.AddCandidate(raw); err != nil {
			slog.Debug("dropping early candidate", "from", from, "err", err)
		}
	}
	delete(e, from)
}
