package game

import (
	"math"

	"rtc-game/protocol"
)

// FadeDuration is how long a movement transition blends, in seconds.
const FadeDuration = 0.5

type action struct {
	duration float64
	time     float64
	weight   float64

	fading      bool
	fadeFrom    float64
	fadeTo      float64
	fadeElapsed float64
	fadeLength  float64
}

func (a *action) scheduleFade(to, length float64) {
	a.fading = true
	a.fadeFrom = a.weight
	a.fadeTo = to
	a.fadeElapsed = 0
	a.fadeLength = length
}

func (a *action) advance(dt float64) {
	if a.weight > 0 || a.fading {
		a.time += dt
		if a.duration > 0 {
			a.time = math.Mod(a.time, a.duration)
		}
	}

	if !a.fading {
		return
	}
	a.fadeElapsed += dt
	if a.fadeLength <= 0 || a.fadeElapsed >= a.fadeLength {
		a.weight = a.fadeTo
		a.fading = false
		return
	}
	a.weight = a.fadeFrom + (a.fadeTo-a.fadeFrom)*(a.fadeElapsed/a.fadeLength)
}

// Animator blends the Idle, Walk and Run clips of one model. At most one
// transition is in flight; starting another restarts every fade from the
// weights currently in effect.
type Animator struct {
	actions [len(protocol.MovementStates)]action
	active  protocol.MovementState
}

// NewAnimator starts with initial fully weighted and the other clips silent.
func NewAnimator(durations func(protocol.MovementState) float64, initial protocol.MovementState) *Animator {
	a := &Animator{active: initial}
	for _, clip := range protocol.MovementStates {
		a.actions[clip].duration = durations(clip)
	}
	a.actions[initial].weight = 1
	return a
}

// Active is the clip the animator is fading toward.
func (a *Animator) Active() protocol.MovementState {
	return a.active
}

// Transition fades from the active clip to to. It reports whether the new
// clip was re-phased against the outgoing one, which only happens between
// two moving clips so that footfalls line up.
func (a *Animator) Transition(to protocol.MovementState) bool {
	from := a.active
	if to == from {
		return false
	}

	next := &a.actions[to]
	prev := &a.actions[from]

	rephase := from != protocol.Idle && to != protocol.Idle
	if rephase && prev.duration > 0 {
		next.time = prev.time * (next.duration / prev.duration)
	} else {
		next.time = 0
	}

	for _, clip := range protocol.MovementStates {
		act := &a.actions[clip]
		switch {
		case clip == to:
			act.scheduleFade(1, FadeDuration)
		case act.weight > 0 || act.fading:
			act.scheduleFade(0, FadeDuration)
		}
	}

	a.active = to
	return rephase
}

// Update advances clip time and fades by dt seconds.
func (a *Animator) Update(dt float64) {
	for i := range a.actions {
		a.actions[i].advance(dt)
	}
}

// Fading reports whether any weight is still moving.
func (a *Animator) Fading() bool {
	for i := range a.actions {
		if a.actions[i].fading {
			return true
		}
	}
	return false
}

func (a *Animator) Weight(clip protocol.MovementState) float64 {
	return a.actions[clip].weight
}

func (a *Animator) Time(clip protocol.MovementState) float64 {
	return a.actions[clip].time
}
