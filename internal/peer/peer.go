// Package peer drives a WebRTC data channel call between two identities,
// using the relay only to exchange offers, answers and ICE candidates.
package peer

import (
	"log/slog"

	pion "github.com/pion/webrtc/v4"

	"github.com/RichatorDEV/webrtc-server/internal/config"
)

// ChannelLabel names the chat data channel opened by the caller.
const ChannelLabel = "chat"

// NewAPI returns a pion API whose internal logs go to logger.
func NewAPI(logger *slog.Logger) *pion.API {
	se := pion.SettingEngine{LoggerFactory: NewLoggerFactory(logger)}
	return pion.NewAPI(pion.WithSettingEngine(se))
}

// ICEServers builds the ICE server list from the client configuration.
func ICEServers(cfg *config.Client) []pion.ICEServer {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	if turnServers := cfg.GetTURNServers(); turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}
	return iceServers
}

func NewPeerConnection(api *pion.API, cfg *config.Client) (*pion.PeerConnection, error) {
	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:         ICEServers(cfg),
		ICETransportPolicy: ICEPolicy(cfg, ShouldForceRelay),
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

func CreateDataChannel(pc *pion.PeerConnection, label string) (*pion.DataChannel, error) {
	ordered := true

	dc, err := pc.CreateDataChannel(label, &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, NewError("create data channel", err)
	}
	return dc, nil
}

func CreateOffer(pc *pion.PeerConnection) (*pion.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, NewError("create offer", err)
	}

	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, NewError("set local description", err)
	}

	return pc.LocalDescription(), nil
}

func CreateAnswer(pc *pion.PeerConnection, offer pion.SessionDescription) (*pion.SessionDescription, error) {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, NewError("set remote description", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, NewError("create answer", err)
	}

	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, NewError("set local description", err)
	}

	return pc.LocalDescription(), nil
}
