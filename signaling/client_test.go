package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

const testTimeout = 2 * time.Second

type fakePeer struct {
	mu          sync.Mutex
	remoteSet   bool
	added       []string
	onCandidate func(webrtc.ICECandidateInit)
	onChannel   func(DataChannel)
	onState     func(webrtc.PeerConnectionState)
	closed      bool

	// gathered is emitted while the offer is being applied, before the
	// answer exists.
	gathered []webrtc.ICECandidateInit
}

func (p *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if desc.Type != webrtc.SDPTypeOffer {
		return errors.New("not an offer")
	}
	p.mu.Lock()
	p.remoteSet = true
	emit := p.onCandidate
	p.mu.Unlock()
	for _, c := range p.gathered {
		emit(c)
	}
	return nil
}

func (p *fakePeer) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (p *fakePeer) SetLocalDescription(webrtc.SessionDescription) error { return nil }

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.remoteSet {
		return errors.New("remote description not set")
	}
	for _, seen := range p.added {
		if seen == c.Candidate {
			return errors.New("duplicate candidate")
		}
	}
	p.added = append(p.added, c.Candidate)
	return nil
}

func (p *fakePeer) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	p.onCandidate = f
	p.mu.Unlock()
}

func (p *fakePeer) OnDataChannel(f func(DataChannel)) {
	p.mu.Lock()
	p.onChannel = f
	p.mu.Unlock()
}

func (p *fakePeer) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.onState = f
	p.mu.Unlock()
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) announce(dc DataChannel) {
	p.mu.Lock()
	f := p.onChannel
	p.mu.Unlock()
	f(dc)
}

func (p *fakePeer) addedCandidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.added...)
}

// fakeDataChannel reports open as soon as someone listens, twice, to
// check that the client only reacts once.
type fakeDataChannel struct {
	mu        sync.Mutex
	onMessage func(webrtc.DataChannelMessage)
}

func (d *fakeDataChannel) Label() string { return "game" }
func (d *fakeDataChannel) OnOpen(f func()) {
	f()
	f()
}
func (d *fakeDataChannel) OnClose(func())        {}
func (d *fakeDataChannel) Send([]byte) error     { return nil }
func (d *fakeDataChannel) SendText(string) error { return nil }
func (d *fakeDataChannel) Close() error          { return nil }
func (d *fakeDataChannel) OnMessage(f func(webrtc.DataChannelMessage)) {
	d.mu.Lock()
	d.onMessage = f
	d.mu.Unlock()
}

func (d *fakeDataChannel) deliver(text string) {
	d.mu.Lock()
	f := d.onMessage
	d.mu.Unlock()
	f(webrtc.DataChannelMessage{IsString: true, Data: []byte(text)})
}

// signalServer runs script against the first websocket connection.
func signalServer(t *testing.T, script func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testTimeout))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("server read: %v", err)
		return nil
	}
	if messageType != websocket.TextMessage {
		t.Errorf("server got message type %d, want text", messageType)
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Errorf("server got invalid json %q: %v", data, err)
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_Negotiation(t *testing.T) {
	peer := &fakePeer{
		gathered: []webrtc.ICECandidateInit{{Candidate: "candidate:local-1"}},
	}

	serverDone := make(chan struct{})
	url := signalServer(t, func(conn *websocket.Conn) {
		defer close(serverDone)

		// A candidate ahead of the offer must be held, not dropped.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"sdp":null,"candidate":{"candidate":"candidate:remote-1","sdpMid":"0"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"sdp":"v=0 offer","candidate":null}`))

		answer := readJSON(t, conn)
		if string(answer["type"]) != `"answer"` {
			t.Errorf("first message type = %s, want answer", answer["type"])
		}
		if string(answer["sdp"]) != `"v=0 answer"` {
			t.Errorf("answer sdp = %s", answer["sdp"])
		}

		candidate := readJSON(t, conn)
		if string(candidate["type"]) != `"ice"` {
			t.Errorf("second message type = %s, want ice", candidate["type"])
		}
		if !strings.Contains(string(candidate["candidate"]), "candidate:local-1") {
			t.Errorf("candidate = %s", candidate["candidate"])
		}

		// Repeated candidates are tolerated.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"sdp":null,"candidate":{"candidate":"candidate:remote-1","sdpMid":"0"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"sdp":null,"candidate":"candidate:remote-2"}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte(`{"PlayerJoined":"p1"}`))

		conn.SetReadDeadline(time.Now().Add(testTimeout))
		conn.ReadMessage()
	})

	client := NewClient(func() (PeerConnection, error) { return peer, nil })

	var mu sync.Mutex
	var states []State
	var opened int
	var binary []string
	var openedChannel DataChannel
	client.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	client.OnOpen(func(dc DataChannel) {
		mu.Lock()
		opened++
		openedChannel = dc
		mu.Unlock()
	})
	client.OnBinary(func(b []byte) {
		mu.Lock()
		binary = append(binary, string(b))
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := client.Connect(ctx, url); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitFor(t, "remote candidates", func() bool { return len(peer.addedCandidates()) == 2 })
	if got := peer.addedCandidates(); got[0] != "candidate:remote-1" || got[1] != "candidate:remote-2" {
		t.Errorf("applied candidates = %v", got)
	}
	waitFor(t, "binary frame", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(binary) == 1
	})
	if client.State() != ExchangingCandidates {
		t.Errorf("state = %v, want %v", client.State(), ExchangingCandidates)
	}

	channel := &fakeDataChannel{}
	peer.announce(channel)
	waitFor(t, "open", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return openedChannel != nil
	})

	// Messages sent right after open are held for the late listener.
	channel.deliver(`{"PlayerJoined":"p2"}`)
	var received []string
	mu.Lock()
	openedChannel.OnMessage(func(msg webrtc.DataChannelMessage) { received = append(received, string(msg.Data)) })
	if opened != 1 {
		t.Errorf("open callback ran %d times, want 1", opened)
	}
	mu.Unlock()
	if len(received) != 1 || received[0] != `{"PlayerJoined":"p2"}` {
		t.Errorf("received = %v", received)
	}

	client.Close()
	<-client.Done()
	if client.State() != Closed {
		t.Errorf("state after close = %v", client.State())
	}
	<-serverDone

	mu.Lock()
	defer mu.Unlock()
	want := []State{AwaitingRemoteOffer, AnsweringOffer, ExchangingCandidates, Open, Closed}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states = %v, want %v", states, want)
			break
		}
	}
}

func TestClient_ServerCloseEndsSession(t *testing.T) {
	url := signalServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})

	peer := &fakePeer{}
	client := NewClient(func() (PeerConnection, error) { return peer, nil })
	if err := client.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case <-client.Done():
	case <-time.After(testTimeout):
		t.Fatal("client did not close")
	}
	if client.State() != Closed {
		t.Errorf("state = %v, want closed", client.State())
	}
	peer.mu.Lock()
	defer peer.mu.Unlock()
	if !peer.closed {
		t.Error("peer not closed")
	}
}

func TestClient_PeerFailure(t *testing.T) {
	url := signalServer(t, func(conn *websocket.Conn) {
		conn.SetReadDeadline(time.Now().Add(testTimeout))
		conn.ReadMessage()
	})

	peer := &fakePeer{}
	client := NewClient(func() (PeerConnection, error) { return peer, nil })
	if err := client.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	peer.mu.Lock()
	onState := peer.onState
	peer.mu.Unlock()
	onState(webrtc.PeerConnectionStateFailed)

	<-client.Done()
	if client.State() != Failed {
		t.Errorf("state = %v, want failed", client.State())
	}

	// Terminal states stay put.
	client.Close()
	if client.State() != Failed {
		t.Errorf("state after close = %v, want failed", client.State())
	}
}

func TestClient_DialFailure(t *testing.T) {
	client := NewClient(func() (PeerConnection, error) { return &fakePeer{}, nil })
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := client.Connect(ctx, "ws://127.0.0.1:1"); err == nil {
		t.Fatal("Connect succeeded against a closed port")
	}
	if client.State() != Failed {
		t.Errorf("state = %v, want failed", client.State())
	}
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		offer     bool
		candidate string
		wantErr   bool
	}{
		{name: "offer", in: `{"sdp":"v=0","candidate":null}`, offer: true},
		{name: "typed offer", in: `{"type":"offer","sdp":"v=0"}`, offer: true},
		{name: "candidate object", in: `{"sdp":null,"candidate":{"candidate":"candidate:1"}}`, candidate: "candidate:1"},
		{name: "candidate string", in: `{"candidate":"candidate:2"}`, candidate: "candidate:2"},
		{name: "answer type", in: `{"type":"answer","sdp":"v=0"}`, wantErr: true},
		{name: "empty", in: `{"sdp":null,"candidate":null}`, wantErr: true},
		{name: "garbage", in: `not json`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := parseSignal([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseSignal(%s) succeeded", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSignal(%s): %v", tt.in, err)
			}
			if tt.offer && (sig.offer == nil || sig.offer.SDP != "v=0") {
				t.Errorf("offer = %+v", sig.offer)
			}
			if tt.candidate != "" && (sig.candidate == nil || sig.candidate.Candidate != tt.candidate) {
				t.Errorf("candidate = %+v", sig.candidate)
			}
		})
	}
}
