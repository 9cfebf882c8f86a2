package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/RichatorDEV/webrtc-server/internal/peer"
	"github.com/RichatorDEV/webrtc-server/internal/protocol"
	"github.com/RichatorDEV/webrtc-server/internal/ui"
)

var flagListenReject bool

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Wait for calls and echo what callers say",
	Long: `Join the relay and wait for incoming calls. Each call is answered and
every line the caller sends is echoed back prefixed with this peer's name.
Calls are taken one at a time; offers that arrive during a call are
rejected.

With --reject every offer is rejected instead.

Examples:
  webrtc-server listen --name bob
  webrtc-server listen --name bob --reject`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString(flagName)
		return runListen(cmd, name)
	},
}

func runListen(cmd *cobra.Command, name string) error {
	cfg, err := loadClientConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")
	defer stopSpinner()
	cc, err := NewConnectionContext(ctx, cfg, name)
	if err != nil {
		return err
	}
	defer cc.Close()
	stopSpinner()

	ui.PrintSuccessf("Listening as %s", ui.SelfStyle.Render(name))

	early := earlyCandidates{}
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-cc.Handler.Disconnected:
			return peer.ErrSignalingClosed

		case users := <-cc.Handler.UserList:
			cc.users = users

		case n := <-cc.Handler.Candidate:
			early.add(n.From, n.Candidate)

		case n := <-cc.Handler.Answer:
			slog.Debug("ignoring answer outside a call", "from", n.From)

		case from := <-cc.Handler.Reject:
			slog.Debug("ignoring reject outside a call", "from", from)

		case n := <-cc.Handler.Offer:
			if flagListenReject {
				if err := cc.Client.Reject(n.From); err != nil {
					return err
				}
				ui.PrintWarningf("Rejected call from %s", n.From)
				delete(early, n.From)
				continue
			}

			err := answerCall(ctx, cc, n, early)
			switch {
			case err == nil:
				ui.PrintInfof("Call with %s ended", n.From)
			case errors.Is(err, peer.ErrSignalingClosed):
				return err
			default:
				ui.PrintWarningf("Call with %s failed: %v", n.From, err)
			}
		}
	}
}

func answerCall(ctx context.Context, cc *ConnectionContext, offer *protocol.SignalNotice, early earlyCandidates) error {
	from := offer.From
	ui.PrintInfof("%s Incoming call from %s", ui.IconCall, from)

	sess, err := peer.NewSession(cc.API, cc.Config, cc.Client, cc.Name, from, slog.Default())
	if err != nil {
		return err
	}
	defer sess.Close()

	early.flush(from, sess)
	if err := sess.Accept(offer.Offer); err != nil {
		return err
	}

	return cc.RunSession(ctx, sess, callHooks{
		onOpen: func() error {
			ui.PrintSuccessf("Connected to %s", from)
			return nil
		},
		onText: func(text peer.TextPayload) error {
			fmt.Println(ui.FormatChatLine(text.From, text.Body, text.Time(), false))
			reply := echoLine(cc.Name, text.Body)
			if err := sess.SendText(reply); err != nil {
				return err
			}
			fmt.Println(ui.FormatChatLine(cc.Name, reply, time.Now(), true))
			return nil
		},
	})
}

// echoLine is the reply a listener sends for body.
func echoLine(name, body string) string {
	return name + ": " + body
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringP(flagName, "n", "", "Name to join as")
	listenCmd.Flags().BoolVar(&flagListenReject, "reject", false, "Reject every incoming call")
	listenCmd.MarkFlagRequired(flagName)
	addClientFlags(listenCmd)
}
