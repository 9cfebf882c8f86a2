package version

// Version is the current version of the relay and its peer commands.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/RichatorDEV/webrtc-server/internal/version.Version=v1.0.0'"
var Version = "dev"
