// Package signaling negotiates the peer data channel over a websocket
// control plane. The server offers; this side answers.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"
)

// State is a step of the negotiation.
type State int

const (
	Connecting State = iota
	AwaitingRemoteOffer
	AnsweringOffer
	ExchangingCandidates
	Open
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case AwaitingRemoteOffer:
		return "awaiting-offer"
	case AnsweringOffer:
		return "answering"
	case ExchangingCandidates:
		return "exchanging-candidates"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}

// Conn is the control-plane connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Everything the run loop reacts to arrives as one of these.
type event interface{}

type frameEvent struct {
	messageType int
	data        []byte
}

type controlClosedEvent struct {
	err error
}

type localCandidateEvent struct {
	candidate webrtc.ICECandidateInit
}

type dataChannelEvent struct {
	channel DataChannel
}

type channelOpenEvent struct {
	channel DataChannel
}

type peerStateEvent struct {
	state webrtc.PeerConnectionState
}

// Client drives one negotiation. Callbacks run on the client's own
// goroutine and must not block for long.
type Client struct {
	newPeer PeerFactory
	dialer  *websocket.Dialer

	mu       sync.Mutex
	state    State
	conn     Conn
	peer     PeerConnection
	onState  func(State)
	onOpen   func(DataChannel)
	onBinary func([]byte)

	events    chan event
	done      chan struct{}
	closeOnce sync.Once
	openOnce  sync.Once

	// Owned by the run goroutine.
	remoteSet     bool
	answered      bool
	pendingRemote []webrtc.ICECandidateInit
	pendingLocal  []webrtc.ICECandidateInit
}

func NewClient(newPeer PeerFactory) *Client {
	return &Client{
		newPeer: newPeer,
		dialer:  websocket.DefaultDialer,
		state:   Connecting,
		events:  make(chan event, 256),
		done:    make(chan struct{}),
	}
}

// OnStateChange is called after every transition.
func (c *Client) OnStateChange(f func(State)) {
	c.mu.Lock()
	c.onState = f
	c.mu.Unlock()
}

// OnOpen is called exactly once, when the data channel opens.
func (c *Client) OnOpen(f func(DataChannel)) {
	c.mu.Lock()
	c.onOpen = f
	c.mu.Unlock()
}

// OnBinary receives binary control-plane frames, which carry application
// messages the server sends before or beside the data channel.
func (c *Client) OnBinary(f func([]byte)) {
	c.mu.Lock()
	c.onBinary = f
	c.mu.Unlock()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the client reaches Closed or Failed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connect dials url and starts negotiating in the background. It returns
// once the control connection is up.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.setState(Connecting)

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.stop(Failed)
		return fmt.Errorf("dialing %s: %w", url, err)
	}

	log.WithField("url", url).Info("Connected to signaling server")
	return c.start(ctx, conn)
}

func (c *Client) start(ctx context.Context, conn Conn) error {
	peer, err := c.newPeer()
	if err != nil {
		conn.Close()
		c.stop(Failed)
		return fmt.Errorf("creating peer connection: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.peer = peer
	c.mu.Unlock()

	peer.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		c.post(localCandidateEvent{candidate})
	})
	peer.OnDataChannel(func(dc DataChannel) {
		c.post(dataChannelEvent{dc})
	})
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.post(peerStateEvent{state})
	})

	c.setState(AwaitingRemoteOffer)

	go c.readLoop(conn)
	go c.run(ctx)
	return nil
}

// Close tears down the control connection and the peer.
func (c *Client) Close() error {
	c.stop(Closed)
	return nil
}

func (c *Client) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Client) readLoop(conn Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.post(controlClosedEvent{err})
			return
		}
		c.post(frameEvent{messageType, data})
	}
}

func (c *Client) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.stop(Closed)
			return
		case <-c.done:
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Client) handle(ev event) {
	switch ev := ev.(type) {
	case frameEvent:
		c.handleFrame(ev)
	case localCandidateEvent:
		if !c.answered {
			c.pendingLocal = append(c.pendingLocal, ev.candidate)
			return
		}
		c.sendCandidate(ev.candidate)
	case dataChannelEvent:
		channel := HoldMessages(ev.channel)
		log.WithField("label", channel.Label()).Debug("Remote data channel announced")
		channel.OnOpen(func() {
			c.post(channelOpenEvent{channel})
		})
	case channelOpenEvent:
		c.openOnce.Do(func() {
			log.WithField("label", ev.channel.Label()).Info("Data channel opened")
			c.setState(Open)
			c.mu.Lock()
			onOpen := c.onOpen
			c.mu.Unlock()
			if onOpen != nil {
				onOpen(ev.channel)
			}
		})
	case peerStateEvent:
		log.WithField("state", ev.state.String()).Debug("Peer connection state changed")
		switch ev.state {
		case webrtc.PeerConnectionStateFailed:
			log.Warn("Peer connection failed")
			c.stop(Failed)
		case webrtc.PeerConnectionStateClosed:
			c.stop(Closed)
		}
	case controlClosedEvent:
		if websocket.IsCloseError(ev.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.Info("Signaling server closed the connection")
		} else {
			log.WithError(ev.err).Warn("Signaling connection lost")
		}
		c.stop(Closed)
	}
}

func (c *Client) handleFrame(ev frameEvent) {
	if ev.messageType == websocket.BinaryMessage {
		c.mu.Lock()
		onBinary := c.onBinary
		c.mu.Unlock()
		if onBinary != nil {
			onBinary(ev.data)
		}
		return
	}

	sig, err := parseSignal(ev.data)
	if err != nil {
		log.WithError(err).Warn("Ignoring signaling message")
		return
	}

	switch {
	case sig.offer != nil:
		if err := c.answer(*sig.offer); err != nil {
			log.WithError(err).Error("Failed to answer offer")
			c.stop(Failed)
		}
	case sig.candidate != nil:
		c.addRemoteCandidate(*sig.candidate)
	}
}

// answer applies the remote offer and writes back a local answer. Local
// candidates gathered before the answer goes out are held until after it.
func (c *Client) answer(offer webrtc.SessionDescription) error {
	renegotiating := c.State() == Open
	if !renegotiating {
		c.setState(AnsweringOffer)
	}

	if err := c.peer.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	c.remoteSet = true
	for _, candidate := range c.pendingRemote {
		c.applyRemoteCandidate(candidate)
	}
	c.pendingRemote = nil

	answer, err := c.peer.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating answer: %w", err)
	}
	if err := c.peer.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	if !c.write(answerMessage{Type: "answer", SDP: answer.SDP}) {
		return nil
	}
	c.answered = true
	log.Debug("Sent answer")

	if !renegotiating {
		c.setState(ExchangingCandidates)
	}
	for _, candidate := range c.pendingLocal {
		c.sendCandidate(candidate)
	}
	c.pendingLocal = nil
	return nil
}

// addRemoteCandidate applies a candidate, or holds it until the remote
// description is set.
func (c *Client) addRemoteCandidate(candidate webrtc.ICECandidateInit) {
	if !c.remoteSet {
		c.pendingRemote = append(c.pendingRemote, candidate)
		return
	}
	c.applyRemoteCandidate(candidate)
}

func (c *Client) applyRemoteCandidate(candidate webrtc.ICECandidateInit) {
	// Duplicate and late candidates are expected.
	if err := c.peer.AddICECandidate(candidate); err != nil {
		log.WithError(err).Debug("Remote candidate not applied")
	}
}

func (c *Client) sendCandidate(candidate webrtc.ICECandidateInit) {
	c.write(candidateMessage{Type: "ice", Candidate: candidate})
}

// write sends v as a text frame. A failed write closes the client.
func (c *Client) write(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("Failed to encode signaling message")
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.WithError(err).Warn("Failed to write signaling message")
		c.stop(Closed)
		return false
	}
	return true
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s || c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	from := c.state
	c.state = s
	onState := c.onState
	c.mu.Unlock()

	log.WithFields(log.Fields{"from": from, "to": s}).Debug("Signaling state changed")
	if onState != nil {
		onState(s)
	}
}

func (c *Client) stop(final State) {
	c.closeOnce.Do(func() {
		c.setState(final)
		close(c.done)

		c.mu.Lock()
		conn, peer := c.conn, c.peer
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if peer != nil {
			peer.Close()
		}
	})
}
