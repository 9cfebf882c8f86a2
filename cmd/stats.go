package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/RichatorDEV/webrtc-server/internal/peer"
	"github.com/RichatorDEV/webrtc-server/internal/server"
	"github.com/RichatorDEV/webrtc-server/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show relay counters",
	Long: `Fetch /stats from a running relay and print its presence and relay
counters.

Examples:
  webrtc-server stats
  webrtc-server stats --server https://relay.example`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig(cmd)
		if err != nil {
			return err
		}

		stats, err := fetchStats(cmd, cfg.HTTPBase()+"/stats")
		if err != nil {
			return peer.NewError("fetch stats", err)
		}

		ui.RenderStats(ui.StatsSummary{
			Online:      stats.Online,
			Connections: stats.Connections,
			Counters:    stats.Counters,
		})
		return nil
	},
}

func fetchStats(cmd *cobra.Command, url string) (*server.Stats, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var stats server.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("server", "", "Relay URL (default \"http://localhost:3000\")")
}
