package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RichatorDEV/webrtc-server/internal/ui"
)

var flagWhoOnce bool

var whoCmd = &cobra.Command{
	Use:   "who",
	Short: "Show who is online",
	Long: `Join the relay and show the live list of online peers. Joining makes
this name visible to everyone else too.

Examples:
  webrtc-server who --name alice
  webrtc-server who --name alice --once`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString(flagName)

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

		if flagWhoOnce {
			users, err := cc.WaitForUsers(ctx)
			if err != nil {
				return err
			}
			fmt.Println()
			ui.RenderPresence(users, name)
			return nil
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		updates := make(chan []string)
		go func() {
			defer close(updates)
			for {
				users, err := cc.WaitForUsers(ctx)
				if err != nil {
					return
				}
				select {
				case updates <- users:
				case <-ctx.Done():
					return
				}
			}
		}()

		return ui.RunPresence(name, cfg.ServerURL, updates)
	},
}

func init() {
	rootCmd.AddCommand(whoCmd)

	whoCmd.Flags().StringP(flagName, "n", "", "Name to join as")
	whoCmd.Flags().BoolVar(&flagWhoOnce, "once", false, "Print the current list and exit")
	whoCmd.MarkFlagRequired(flagName)
	addClientFlags(whoCmd)
}
