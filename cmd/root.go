package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RichatorDEV/webrtc-server/internal/ui"
	"github.com/RichatorDEV/webrtc-server/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "webrtc-server",
	Short: "Presence and signaling relay for WebRTC peers",
	Long: `webrtc-server keeps track of who is online and relays WebRTC offers,
answers and ICE candidates between named peers over a websocket.

Run "serve" for the relay itself. The who, call and listen commands are
peers that talk to a running relay.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
