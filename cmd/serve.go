package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RichatorDEV/webrtc-server/internal/config"
	"github.com/RichatorDEV/webrtc-server/internal/logging"
	"github.com/RichatorDEV/webrtc-server/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the presence and signaling relay",
	Long: `Run the relay. Peers connect to /ws, join with a name, and can then
exchange offers, answers and ICE candidates with any other online name.

The listen address comes from --listen, WEBRTC_SERVER_LISTEN, or PORT, in
that order, and defaults to :3000.

Examples:
  webrtc-server serve
  PORT=8080 webrtc-server serve
  webrtc-server serve --listen 127.0.0.1:9000 --allowed-origins https://app.example`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := config.NewViper()
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		cfg, err := config.LoadServer(v)
		if err != nil {
			return err
		}

		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger := logging.Setup(level)

		return server.New(cfg, logger).ListenAndServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringP(config.KeyListen, "l", "", "Listen address (default \":$PORT\" or \":3000\")")
	f.StringSlice(config.KeyAllowedOrigins, nil, "Allowed websocket origins; empty or * allows all")
	f.Int(config.KeySendQueue, config.DefaultSendQueue, "Outbound messages buffered per connection")
	f.Int64(config.KeyMaxMessageSize, config.DefaultMaxMessageSize, "Largest inbound websocket message in bytes")
	f.Duration(config.KeyWriteWait, config.DefaultWriteWait, "Deadline for a single websocket write")
	f.Duration(config.KeyPongWait, config.DefaultPongWait, "Time allowed between pongs before a peer is dropped")
	f.Duration(config.KeyShutdownTimeout, config.DefaultShutdownTimeout, "Grace period for shutdown")
	f.String(config.KeyLogLevel, config.DefaultServerLogLevel, "Log level: debug, info, warn or error")
}
