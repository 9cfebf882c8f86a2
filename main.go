package main

import (
	"github.com/RichatorDEV/webrtc-server/cmd"
	"github.com/RichatorDEV/webrtc-server/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
