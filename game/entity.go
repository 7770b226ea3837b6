package game

import (
	"github.com/go-gl/mathgl/mgl64"

	"rtc-game/protocol"
	"rtc-game/render"
)

// Mode selects where an entity's state comes from.
type Mode int

const (
	// Remote entities copy snapshots received from the server.
	Remote Mode = iota
	// Tracked is the local player driven by input.
	Tracked
)

// Entity is one player: its kinematic state, movement history, smoothed
// facing and, once loaded, its model.
type Entity struct {
	id   protocol.PlayerID
	mode Mode

	state    protocol.PlayerState
	previous protocol.MovementState

	// facing chases state.Rotate by at most RotateStep per tick.
	facing mgl64.Quat

	model    render.Model
	animator *Animator
	removed  bool
}

func newEntity(id protocol.PlayerID, mode Mode) *Entity {
	state := protocol.DefaultPlayerState()
	return &Entity{
		id:       id,
		mode:     mode,
		state:    state,
		previous: state.MovementState,
		facing:   toQuat(state.Rotate),
	}
}

func (e *Entity) ID() protocol.PlayerID {
	return e.id
}

func (e *Entity) Mode() Mode {
	return e.mode
}

func (e *Entity) State() protocol.PlayerState {
	return e.state
}

// Previous is the movement state before the most recent change of state.
func (e *Entity) Previous() protocol.MovementState {
	return e.previous
}

func (e *Entity) Facing() protocol.Quat {
	return fromQuat(e.facing)
}

// Loaded reports whether the model has arrived and been attached.
func (e *Entity) Loaded() bool {
	return e.model != nil
}

// Animator is nil until the model has loaded.
func (e *Entity) Animator() *Animator {
	return e.animator
}

// SetState replaces the snapshot with one received from the network.
func (e *Entity) SetState(s protocol.PlayerState) {
	e.previous = e.state.MovementState
	e.state = s
}

// Drive integrates the tracked player's state from held input for one tick.
func (e *Entity) Drive(axes Axes, azimuth, dt float64) {
	e.previous = e.state.MovementState
	e.state.MovementState = DeriveMovement(axes)

	if e.state.MovementState == protocol.Idle {
		return
	}

	up := upAxis(e.state.Up)
	e.state.Rotate = fromQuat(heading(axes, azimuth, up))

	step := displacement(axes, velocity(e.state.MovementState), dt, azimuth, up)
	e.state.Position = fromVec(toVec(e.state.Position).Add(step))
}

// advance moves the smoothed facing and, once a model is present, drives
// the animation and transform for one tick.
func (e *Entity) advance(dt float64) {
	e.facing = rotateTowards(e.facing, toQuat(e.state.Rotate).Normalize(), RotateStep)

	if e.model == nil {
		return
	}

	if next := e.state.MovementState; next != e.animator.Active() {
		from := e.animator.Active()
		rephase := e.animator.Transition(next)
		e.model.Crossfade(from, next, FadeDuration, rephase)
	}

	e.animator.Update(dt)
	for _, clip := range protocol.MovementStates {
		e.model.PlayAnimation(clip, e.animator.Weight(clip), e.animator.Time(clip))
	}
	e.model.SetTransform(e.state.Position, fromQuat(e.facing))
}

// bind installs a freshly loaded model. The animator starts on the current
// movement state rather than fading in from Idle.
func (e *Entity) bind(m render.Model) {
	e.model = m
	e.animator = NewAnimator(m.ClipDuration, e.state.MovementState)
	for _, clip := range protocol.MovementStates {
		e.model.PlayAnimation(clip, e.animator.Weight(clip), 0)
	}
	e.model.SetTransform(e.state.Position, fromQuat(e.facing))
}
