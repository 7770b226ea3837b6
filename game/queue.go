package game

import (
	"sync"

	"rtc-game/protocol"
	"rtc-game/render"
	"rtc-game/signaling"
	"rtc-game/transport"
)

// Event is something that happened off the tick goroutine.
type Event interface {
	event()
}

type serverMessageEvent struct {
	msg protocol.ServerMessage
}

type modelLoadedEvent struct {
	entity *Entity
	model  render.Model
}

type keyEvent struct {
	key     Key
	pressed bool
}

type channelOpenEvent struct {
	session *transport.Session
}

type channelClosedEvent struct {
	session *transport.Session
}

type signalingStateEvent struct {
	state signaling.State
}

func (serverMessageEvent) event()  {}
func (modelLoadedEvent) event()    {}
func (keyEvent) event()            {}
func (channelOpenEvent) event()    {}
func (channelClosedEvent) event()  {}
func (signalingStateEvent) event() {}

// EventQueue buffers events until the next tick drains them. It is safe to
// push from any goroutine.
type EventQueue struct {
	mu     sync.Mutex
	events []Event
}

func (q *EventQueue) Push(e Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	q.mu.Unlock()
}

// Drain returns every queued event in arrival order and empties the queue.
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
