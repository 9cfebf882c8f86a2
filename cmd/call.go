package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RichatorDEV/webrtc-server/internal/peer"
	"github.com/RichatorDEV/webrtc-server/internal/ui"
)

var (
	flagCallTo      string
	flagCallMessage string
	flagCallWait    time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Call an online peer and chat over a data channel",
	Long: `Join the relay, wait until the named peer is online, and open a WebRTC
data channel to it. Offers, answers and ICE candidates travel through the
relay; chat lines go peer to peer.

With --message the line is sent once the channel opens and the call ends
after the first reply. Without it, lines typed on stdin are sent until EOF.

Examples:
  webrtc-server call --name alice --to bob
  webrtc-server call --name alice --to bob --message "hello"
  webrtc-server call --server wss://relay.example --name alice --to bob`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString(flagName)
		return runCall(cmd, name, flagCallTo)
	},
}

func runCall(cmd *cobra.Command, name, to string) error {
	if name == to {
		return fmt.Errorf("cannot call yourself")
	}

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

	stopSpinner = ui.RunWaitingSpinner(fmt.Sprintf("Waiting for %s to come online...", to))
	err = cc.WaitForOnline(ctx, to, flagCallWait)
	stopSpinner()
	if err != nil {
		return err
	}

	sess, err := peer.NewSession(cc.API, cfg, cc.Client, name, to, slog.Default())
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Offer(); err != nil {
		return err
	}

	stopSpinner = ui.RunWaitingSpinner(fmt.Sprintf("%s Calling %s...", ui.IconCall, to))
	defer stopSpinner()

	hooks := callHooks{
		onOpen: func() error {
			stopSpinner()
			ui.PrintSuccessf("Connected to %s", to)
			if flagCallMessage == "" {
				return nil
			}
			if err := sess.SendText(flagCallMessage); err != nil {
				return err
			}
			fmt.Println(ui.FormatChatLine(name, flagCallMessage, time.Now(), true))
			return nil
		},
		onText: func(text peer.TextPayload) error {
			fmt.Println(ui.FormatChatLine(text.From, text.Body, text.Time(), false))
			if flagCallMessage != "" {
				return errHangUp
			}
			return nil
		},
	}
	if flagCallMessage == "" {
		hooks.lines = readLines(ctx)
	}

	return cc.RunSession(ctx, sess, hooks)
}

// readLines streams stdin lines until EOF or ctx is done.
func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringP(flagName, "n", "", "Name to join as")
	callCmd.Flags().StringVarP(&flagCallTo, "to", "t", "", "Name of the peer to call")
	callCmd.Flags().StringVarP(&flagCallMessage, "message", "m", "", "Send one line, print the reply and hang up")
	callCmd.Flags().DurationVar(&flagCallWait, "wait", defaultOnlineWait, "How long to wait for the peer to come online")
	callCmd.MarkFlagRequired(flagName)
	callCmd.MarkFlagRequired("to")
	addClientFlags(callCmd)
}
