package game

import (
	"rtc-game/protocol"
	"rtc-game/render"

	log "github.com/sirupsen/logrus"
)

// Registry maps remote player ids to entities. It is only touched from the
// controller's tick goroutine, so it needs idempotency rather than locks.
type Registry struct {
	players map[protocol.PlayerID]*Entity
	// pending keeps the latest state of ids an update named before their
	// join arrived.
	pending map[protocol.PlayerID]protocol.PlayerState
	adapter render.Adapter
	// loaded hands an asynchronous model load back to the tick goroutine.
	loaded func(*Entity, render.Model)
}

func NewRegistry(adapter render.Adapter, loaded func(*Entity, render.Model)) *Registry {
	return &Registry{
		players: make(map[protocol.PlayerID]*Entity),
		pending: make(map[protocol.PlayerID]protocol.PlayerState),
		adapter: adapter,
		loaded:  loaded,
	}
}

// OnJoined registers id and starts loading its model. A state that arrived
// before the join is applied at once. Already known ids are left untouched.
func (r *Registry) OnJoined(id protocol.PlayerID) {
	if _, ok := r.players[id]; ok {
		log.WithField("player", id).Debug("Duplicate join ignored")
		return
	}

	e := newEntity(id, Remote)
	if state, ok := r.pending[id]; ok {
		e.SetState(state)
		delete(r.pending, id)
	}
	r.players[id] = e
	log.WithField("player", id).Info("Player joined")

	r.adapter.LoadModel(id, func(m render.Model) {
		r.loaded(e, m)
	})
}

// OnLeft unregisters id and detaches its model. A model still loading for
// it will never be attached.
func (r *Registry) OnLeft(id protocol.PlayerID) {
	delete(r.pending, id)
	e, ok := r.players[id]
	if !ok {
		log.WithField("player", id).Debug("Leave for unknown player ignored")
		return
	}

	delete(r.players, id)
	release(r.adapter, e)
	log.WithField("player", id).Info("Player left")
}

// OnUpdate applies each state to a known entity. For ids that have not
// joined yet only the latest state is kept, without creating an entity.
func (r *Registry) OnUpdate(players map[protocol.PlayerID]protocol.PlayerState) {
	for id, state := range players {
		e, ok := r.players[id]
		if !ok {
			r.pending[id] = state
			continue
		}
		e.SetState(state)
	}
}

func (r *Registry) Get(id protocol.PlayerID) (*Entity, bool) {
	e, ok := r.players[id]
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.players)
}

// Each visits every entity in unspecified order.
func (r *Registry) Each(f func(*Entity)) {
	for _, e := range r.players {
		f(e)
	}
}

// Clear releases every entity and forgets pending states.
func (r *Registry) Clear() {
	clear(r.pending)
	for id, e := range r.players {
		delete(r.players, id)
		release(r.adapter, e)
	}
}

// attach binds a loaded model unless the entity was released meanwhile.
func attach(adapter render.Adapter, e *Entity, m render.Model) {
	if e.removed {
		log.WithField("player", e.id).Debug("Model arrived after leave, discarding")
		return
	}
	if e.model != nil {
		return
	}
	e.bind(m)
	adapter.Attach(m)
}

func release(adapter render.Adapter, e *Entity) {
	if e.removed {
		return
	}
	e.removed = true
	if e.model != nil {
		adapter.Detach(e.model)
	}
}
