package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"

	"rtc-game/protocol"
)

// ChannelLabel names the data channel the relay opens to each player.
const ChannelLabel = "game"

const sendBuffer = 64

type frame struct {
	messageType int
	data        []byte
}

// offerMessage carries either the offer or one candidate; the other field
// is sent as null.
type offerMessage struct {
	SDP       *string                  `json:"sdp"`
	Candidate *webrtc.ICECandidateInit `json:"candidate"`
}

type answerMessage struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp"`
	Candidate *webrtc.ICECandidateInit `json:"candidate"`
}

// Peer is one player connection: a websocket for signaling and join/leave
// notices, and a data channel for state.
type Peer struct {
	id   protocol.PlayerID
	hub  *Hub
	conn *websocket.Conn
	pc   *webrtc.PeerConnection
	dc   *webrtc.DataChannel

	send      chan frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newPeer(hub *Hub, conn *websocket.Conn, api *webrtc.API, config webrtc.Configuration) (*Peer, error) {
	pc, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	dc, err := pc.CreateDataChannel(ChannelLabel, nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("creating data channel: %w", err)
	}

	p := &Peer{
		id:     protocol.PlayerID(uuid.New().String()),
		hub:    hub,
		conn:   conn,
		pc:     pc,
		dc:     dc,
		send:   make(chan frame, sendBuffer),
		closed: make(chan struct{}),
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		candidateInit := candidate.ToJSON()
		p.sendJSON(offerMessage{Candidate: &candidateInit})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.WithFields(log.Fields{"player": p.id, "state": state.String()}).Debug("Peer connection state changed")
		if state == webrtc.PeerConnectionStateFailed {
			hub.Leave(p)
		}
	})

	dc.OnOpen(func() {
		log.WithField("player", p.id).Info("Data channel open")
		hub.Join(p)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		hub.Receive(p, msg.Data)
	})
	dc.OnClose(func() {
		hub.Leave(p)
	})

	return p, nil
}

func (p *Peer) ID() protocol.PlayerID {
	return p.id
}

func (p *Peer) SendControl(payload []byte) {
	p.queue(frame{websocket.BinaryMessage, payload})
}

func (p *Peer) SendData(payload []byte) {
	if p.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return
	}
	if err := p.dc.SendText(string(payload)); err != nil {
		log.WithError(err).WithField("player", p.id).Debug("Failed to send on data channel")
	}
}

func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		// pion may be inside one of our callbacks, which block on the hub.
		go func() {
			if err := p.pc.Close(); err != nil {
				log.WithError(err).WithField("player", p.id).Debug("Failed to close peer connection")
			}
		}()
	})
}

// queue drops the frame when the player is not keeping up.
func (p *Peer) queue(f frame) {
	select {
	case p.send <- f:
	case <-p.closed:
	default:
		log.WithField("player", p.id).Warn("Send buffer full, dropping message")
	}
}

func (p *Peer) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("Error marshalling signaling message")
		return
	}
	p.queue(frame{websocket.TextMessage, data})
}

// offer starts negotiation. Candidates trickle after it.
func (p *Peer) offer() error {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	p.sendJSON(offerMessage{SDP: &offer.SDP})
	return nil
}

func (p *Peer) receiveMessage() {
	defer func() {
		p.hub.Leave(p)
		p.conn.Close()
	}()

	for {
		messageType, message, err := p.conn.ReadMessage()
		if err != nil {
			break
		}

		if messageType == websocket.BinaryMessage {
			p.hub.Receive(p, message)
			continue
		}
		if err := p.handleSignal(message); err != nil {
			log.WithError(err).WithField("player", p.id).Warn("Ignoring signaling message")
		}
	}
}

func (p *Peer) sendMessage() {
	defer p.conn.Close()

	for {
		select {
		case f := <-p.send:
			if err := p.conn.WriteMessage(f.messageType, f.data); err != nil {
				return
			}
		case <-p.closed:
			return
		}
	}
}

var errUnknownSignal = errors.New("unrecognized signaling message")

// parseAnswer reads a client's reply: an answer, a candidate, or a bare
// answer SDP.
func parseAnswer(data []byte) (*webrtc.SessionDescription, *webrtc.ICECandidateInit, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("v=0")) {
		return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: string(data)}, nil, nil
	}

	var msg answerMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, nil, fmt.Errorf("parsing signal: %w", err)
	}
	switch msg.Type {
	case "answer":
		return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}, nil, nil
	case "ice":
		if msg.Candidate == nil {
			return nil, nil, errors.New("ice message without candidate")
		}
		return nil, msg.Candidate, nil
	}
	return nil, nil, errUnknownSignal
}

func (p *Peer) handleSignal(data []byte) error {
	answer, candidate, err := parseAnswer(data)
	if err != nil {
		return err
	}
	if answer != nil {
		return p.pc.SetRemoteDescription(*answer)
	}
	if err := p.pc.AddICECandidate(*candidate); err != nil {
		log.WithError(err).WithField("player", p.id).Debug("Remote candidate not applied")
	}
	return nil
}
