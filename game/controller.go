package game

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"rtc-game/protocol"
	"rtc-game/render"
	"rtc-game/signaling"
	"rtc-game/transport"
)

// LocalID names the tracked player's model request. The server never refers
// to the local player by this id.
const LocalID protocol.PlayerID = "local"

var statusInterval = 5 * time.Second

// Controller is the client's session context. It owns the registry, the
// tracked player and the open session, and mutates them only inside Tick.
// Everything that happens elsewhere reaches it through the queue.
type Controller struct {
	adapter  render.Adapter
	registry *Registry
	tracked  *Entity
	input    Input
	queue    EventQueue
	session  *transport.Session
	state    signaling.State
	frame    time.Duration
}

// NewController creates a controller ticking frameRate times a second and
// starts loading the tracked player's model.
func NewController(adapter render.Adapter, frameRate int) *Controller {
	if frameRate <= 0 {
		frameRate = 60
	}
	c := &Controller{
		adapter: adapter,
		tracked: newEntity(LocalID, Tracked),
		frame:   time.Second / time.Duration(frameRate),
	}
	c.registry = NewRegistry(adapter, c.modelLoaded)

	tracked := c.tracked
	adapter.LoadModel(LocalID, func(m render.Model) {
		c.modelLoaded(tracked, m)
	})
	return c
}

func (c *Controller) modelLoaded(e *Entity, m render.Model) {
	c.queue.Push(modelLoadedEvent{entity: e, model: m})
}

func (c *Controller) Registry() *Registry {
	return c.registry
}

func (c *Controller) Tracked() *Entity {
	return c.tracked
}

// Connected reports whether a session is currently open.
func (c *Controller) Connected() bool {
	return c.session != nil
}

func (c *Controller) KeyDown(k Key) {
	c.queue.Push(keyEvent{key: k, pressed: true})
}

func (c *Controller) KeyUp(k Key) {
	c.queue.Push(keyEvent{key: k, pressed: false})
}

// Deliver queues a decoded server message for the next tick.
func (c *Controller) Deliver(msg protocol.ServerMessage) {
	c.queue.Push(serverMessageEvent{msg: msg})
}

// Attach routes a signaling client's callbacks into the queue.
func (c *Controller) Attach(client *signaling.Client) {
	client.OnStateChange(func(s signaling.State) {
		c.queue.Push(signalingStateEvent{state: s})
	})
	client.OnBinary(func(payload []byte) {
		transport.Dispatch(payload, c.Deliver)
	})
	client.OnOpen(func(dc signaling.DataChannel) {
		c.Open(dc)
	})
}

// Open starts a session on an open channel. Messages the channel already
// holds are queued like any others.
func (c *Controller) Open(channel transport.Channel) {
	session := transport.NewSession(channel, c.Deliver)
	session.OnClose(func() {
		c.queue.Push(channelClosedEvent{session: session})
	})
	c.queue.Push(channelOpenEvent{session: session})
}

// Tick applies queued events and advances every entity by dt seconds.
func (c *Controller) Tick(dt float64) {
	for _, ev := range c.queue.Drain() {
		c.apply(ev)
	}

	c.tracked.Drive(c.input.Axes(), c.adapter.CameraAzimuth(), dt)
	c.tracked.advance(dt)
	c.registry.Each(func(e *Entity) {
		e.advance(dt)
	})

	if c.session == nil {
		return
	}
	if err := c.session.Send(protocol.PlayerUpdate{State: c.tracked.State()}); err != nil {
		log.WithError(err).Debug("Failed to send player update")
	}
}

func (c *Controller) apply(ev Event) {
	switch ev := ev.(type) {
	case serverMessageEvent:
		switch msg := ev.msg.(type) {
		case protocol.PlayerJoined:
			c.registry.OnJoined(msg.ID)
		case protocol.PlayerLeft:
			c.registry.OnLeft(msg.ID)
		case protocol.WorldUpdate:
			c.registry.OnUpdate(msg.Players)
		}
	case modelLoadedEvent:
		attach(c.adapter, ev.entity, ev.model)
	case keyEvent:
		if ev.pressed {
			c.input.Press(ev.key)
		} else {
			c.input.Release(ev.key)
		}
	case channelOpenEvent:
		c.session = ev.session
		log.WithField("label", ev.session.Label()).Info("Session open")
	case channelClosedEvent:
		if c.session == ev.session {
			c.session = nil
			log.Info("Session closed")
		}
	case signalingStateEvent:
		c.state = ev.state
		if ev.state.Terminal() {
			c.session = nil
		}
	}
}

// Run ticks until ctx is done, then releases every model.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.frame)
	defer ticker.Stop()

	statusTicker := time.NewTicker(statusInterval)
	defer statusTicker.Stop()

	previous := time.Now()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case now := <-ticker.C:
			c.Tick(now.Sub(previous).Seconds())
			previous = now
		case <-statusTicker.C:
			log.WithFields(log.Fields{
				"players":   c.registry.Len(),
				"signaling": c.state,
				"connected": c.Connected(),
				"position":  c.tracked.State().Position,
				"movement":  c.tracked.State().MovementState,
			}).Info("Status")
		}
	}
}

// Close detaches every model. Call it from the goroutine that ticks.
func (c *Controller) Close() {
	c.registry.Clear()
	release(c.adapter, c.tracked)
}
