package signaling

import (
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the answering side of a peer transport.
type PeerConnection interface {
	SetRemoteDescription(desc webrtc.SessionDescription) error
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(f func(webrtc.ICECandidateInit))
	OnDataChannel(f func(DataChannel))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	Close() error
}

// DataChannel is a negotiated message channel. *webrtc.DataChannel
// satisfies it.
type DataChannel interface {
	Label() string
	OnOpen(f func())
	OnClose(f func())
	OnMessage(f func(msg webrtc.DataChannelMessage))
	Send(data []byte) error
	SendText(s string) error
	Close() error
}

// PeerFactory creates one peer connection per session.
type PeerFactory func() (PeerConnection, error)

// NewAPI builds a pion API that logs through loggers. A nil factory keeps
// pion's default logger.
func NewAPI(loggers logging.LoggerFactory) *webrtc.API {
	settingEngine := webrtc.SettingEngine{}
	if loggers != nil {
		settingEngine.LoggerFactory = loggers
	}
	settingEngine.SetIncludeLoopbackCandidate(true)
	return webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
}

// Configuration turns ICE server URLs into a peer configuration. No URLs
// means host candidates only.
func Configuration(iceURLs []string) webrtc.Configuration {
	if len(iceURLs) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceURLs}},
	}
}

// NewPionFactory returns a factory of pion peer connections.
func NewPionFactory(api *webrtc.API, config webrtc.Configuration) PeerFactory {
	return func() (PeerConnection, error) {
		pc, err := api.NewPeerConnection(config)
		if err != nil {
			return nil, err
		}
		return &pionPeer{PeerConnection: pc}, nil
	}
}

type pionPeer struct {
	*webrtc.PeerConnection
}

func (p *pionPeer) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	p.PeerConnection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if candidate == nil {
			return
		}
		f(candidate.ToJSON())
	})
}

// OnDataChannel starts holding messages inside pion's callback. pion drops
// messages that arrive before a handler is registered.
func (p *pionPeer) OnDataChannel(f func(DataChannel)) {
	p.PeerConnection.OnDataChannel(func(dc *webrtc.DataChannel) {
		f(HoldMessages(dc))
	})
}
