package signaling

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// heldChannel holds messages that arrive before anyone asks for them, so
// nothing sent right after open is lost while the session is being wired.
type heldChannel struct {
	DataChannel

	mu      sync.Mutex
	handler func(webrtc.DataChannelMessage)
	held    []webrtc.DataChannelMessage
	// flushing is set while held messages are replayed into a new handler.
	// Messages received meanwhile queue behind them.
	flushing bool
}

// HoldMessages subscribes to dc right away and keeps its messages until
// OnMessage is called on the returned channel. A channel that already
// holds is returned as is.
func HoldMessages(dc DataChannel) DataChannel {
	if h, ok := dc.(*heldChannel); ok {
		return h
	}
	h := &heldChannel{DataChannel: dc}
	dc.OnMessage(h.receive)
	return h
}

func (h *heldChannel) receive(msg webrtc.DataChannelMessage) {
	h.mu.Lock()
	if h.handler == nil || h.flushing {
		h.held = append(h.held, msg)
		h.mu.Unlock()
		return
	}
	handler := h.handler
	h.mu.Unlock()
	handler(msg)
}

// OnMessage replays held messages into f in arrival order before f sees
// anything newer.
func (h *heldChannel) OnMessage(f func(webrtc.DataChannelMessage)) {
	h.mu.Lock()
	h.handler = f
	h.flushing = true
	for len(h.held) > 0 {
		held := h.held
		h.held = nil
		h.mu.Unlock()
		for _, msg := range held {
			f(msg)
		}
		h.mu.Lock()
	}
	h.flushing = false
	h.mu.Unlock()
}
