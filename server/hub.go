package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"rtc-game/config"
	"rtc-game/nats"
	"rtc-game/protocol"
)

// Client is one connected player as the hub sees it.
type Client interface {
	ID() protocol.PlayerID
	// SendControl queues a message on the control connection.
	SendControl(payload []byte)
	// SendData queues a message on the data channel.
	SendData(payload []byte)
	Close()
}

type clientMessage struct {
	client  Client
	payload []byte
}

// Hub relays player state between clients. All player bookkeeping happens
// on the Run goroutine.
type Hub struct {
	ID string

	players map[Client]*protocol.PlayerState

	join     chan Client
	leave    chan Client
	messages chan clientMessage
	done     chan struct{}

	broadcastRate  time.Duration
	replayInterval time.Duration
	publisher      *nats.Publisher

	// ids mirrors the player map for readers outside Run.
	idsLock sync.RWMutex
	ids     []protocol.PlayerID
}

func NewHub(conf config.Config, publisher *nats.Publisher) *Hub {
	return &Hub{
		ID:             uuid.New().String(),
		players:        make(map[Client]*protocol.PlayerState),
		join:           make(chan Client),
		leave:          make(chan Client),
		messages:       make(chan clientMessage),
		done:           make(chan struct{}),
		broadcastRate:  conf.BroadcastRate,
		replayInterval: conf.ReplayInterval,
		publisher:      publisher,
	}
}

// Join announces a client whose data channel is open.
func (h *Hub) Join(c Client) {
	select {
	case h.join <- c:
	case <-h.done:
	}
}

// Leave removes a client. Leaving twice, or without joining, is harmless.
func (h *Hub) Leave(c Client) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}

// Receive hands an encoded client message to the hub.
func (h *Hub) Receive(c Client, payload []byte) {
	select {
	case h.messages <- clientMessage{c, payload}:
	case <-h.done:
	}
}

// Players lists the joined player ids in sorted order.
func (h *Hub) Players() []protocol.PlayerID {
	h.idsLock.RLock()
	defer h.idsLock.RUnlock()
	return append([]protocol.PlayerID(nil), h.ids...)
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	broadcastTicker := time.NewTicker(h.broadcastRate)
	defer broadcastTicker.Stop()
	replayTicker := time.NewTicker(h.replayInterval)
	defer replayTicker.Stop()

	log.WithField("id", h.ID).Info("Relay hub running")

	for {
		select {
		case <-ctx.Done():
			for c := range h.players {
				c.Close()
			}
			log.WithField("id", h.ID).Info("Relay hub stopped")
			return
		case c := <-h.join:
			h.onJoin(c)
		case c := <-h.leave:
			h.onLeave(c)
		case m := <-h.messages:
			h.handleMessage(m)
		case <-broadcastTicker.C:
			if len(h.players) > 0 {
				h.broadcastState()
			}
		case <-replayTicker.C:
			if len(h.players) > 0 {
				h.sendToReplays()
			}
		}
	}
}

func (h *Hub) onJoin(c Client) {
	if _, ok := h.players[c]; ok {
		return
	}

	// The newcomer learns about everyone already here, and everyone
	// learns about the newcomer.
	for other := range h.players {
		h.sendTo(c, protocol.PlayerJoined{ID: other.ID()})
	}
	h.broadcastExcept(protocol.PlayerJoined{ID: c.ID()}, c)

	state := protocol.DefaultPlayerState()
	h.players[c] = &state
	h.syncIDs()
	log.WithField("player", c.ID()).Info("Player joined, there are now ", len(h.players), " players")
}

func (h *Hub) onLeave(c Client) {
	if _, ok := h.players[c]; !ok {
		c.Close()
		return
	}

	delete(h.players, c)
	h.syncIDs()
	c.Close()

	h.broadcastExcept(protocol.PlayerLeft{ID: c.ID()}, c)
	log.WithField("player", c.ID()).Info("Player left, there are now ", len(h.players), " players")
}

func (h *Hub) handleMessage(m clientMessage) {
	state, ok := h.players[m.client]
	if !ok {
		return
	}

	msg, err := protocol.DecodeClient(m.payload)
	if err != nil {
		log.WithError(err).WithField("player", m.client.ID()).Warn("Error decoding client message")
		return
	}

	switch msg := msg.(type) {
	case protocol.PlayerUpdate:
		*state = msg.State
	case protocol.Move:
		state.Position = msg.Position
	}
}

func (h *Hub) snapshot() protocol.WorldUpdate {
	players := make(map[protocol.PlayerID]protocol.PlayerState, len(h.players))
	for c, state := range h.players {
		players[c.ID()] = *state
	}
	return protocol.WorldUpdate{Players: players}
}

func (h *Hub) broadcastState() {
	bytes, err := protocol.EncodeServer(h.snapshot())
	if err != nil {
		log.WithError(err).Error("Error encoding world update")
		return
	}
	for c := range h.players {
		c.SendData(bytes)
	}
}

func (h *Hub) sendToReplays() {
	bytes, err := protocol.EncodeServer(h.snapshot())
	if err != nil {
		log.WithError(err).Error("Error encoding replay snapshot")
		return
	}
	h.publisher.Publish("game_state."+h.ID, bytes)
}

func (h *Hub) sendTo(c Client, msg protocol.ServerMessage) {
	bytes, err := protocol.EncodeServer(msg)
	if err != nil {
		log.WithError(err).Error("Error encoding message")
		return
	}
	c.SendControl(bytes)
}

func (h *Hub) broadcastExcept(msg protocol.ServerMessage, except Client) {
	bytes, err := protocol.EncodeServer(msg)
	if err != nil {
		log.WithError(err).Error("Error encoding message")
		return
	}
	for c := range h.players {
		if c == except {
			continue
		}
		c.SendControl(bytes)
	}
}

func (h *Hub) syncIDs() {
	ids := make([]protocol.PlayerID, 0, len(h.players))
	for c := range h.players {
		ids = append(ids, c.ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h.idsLock.Lock()
	h.ids = ids
	h.idsLock.Unlock()
}
