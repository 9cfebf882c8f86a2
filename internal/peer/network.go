package peer

import (
	"net"
	"strings"

	pion "github.com/pion/webrtc/v4"

	"github.com/RichatorDEV/webrtc-server/internal/config"
)

// vpnNameHints are interface name fragments used by VPN and tunnel adapters.
var vpnNameHints = []string{"tun", "tap", "wg", "ppp", "warp"}

var cgnatBlock = func() *net.IPNet {
	_, block, _ := net.ParseCIDR("100.64.0.0/10")
	return block
}()

// ShouldForceRelay checks if the system is likely behind a restrictive VPN or
// CGNAT, where direct paths rarely work.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		if looksLikeVPN(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if inCGNAT(addr) {
				return true
			}
		}
	}

	return false
}

func looksLikeVPN(name string) bool {
	name = strings.ToLower(name)
	for _, hint := range vpnNameHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func inCGNAT(addr net.Addr) bool {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	}
	return ip != nil && cgnatBlock.Contains(ip)
}

// ICEPolicy picks the transport policy. Relay-only needs a TURN server and
// is used when asked for or when the host looks tunnelled.
func ICEPolicy(cfg *config.Client, detect func() bool) pion.ICETransportPolicy {
	if cfg.GetTURNServers() == nil {
		return pion.ICETransportPolicyAll
	}
	if cfg.ForceRelay || (detect != nil && detect()) {
		return pion.ICETransportPolicyRelay
	}
	return pion.ICETransportPolicyAll
}
