package game

import (
	"rtc-game/protocol"
	"rtc-game/render"
)

type crossfade struct {
	from, to protocol.MovementState
	rephase  bool
}

type fakeModel struct {
	id         protocol.PlayerID
	durations  map[protocol.MovementState]float64
	weights    map[protocol.MovementState]float64
	crossfades []crossfade
	position   protocol.Vec3
	rotation   protocol.Quat
	transforms int
}

func newFakeModel(id protocol.PlayerID) *fakeModel {
	return &fakeModel{
		id: id,
		durations: map[protocol.MovementState]float64{
			protocol.Idle: 2.0,
			protocol.Walk: 1.0,
			protocol.Run:  0.5,
		},
		weights: make(map[protocol.MovementState]float64),
	}
}

func (m *fakeModel) ClipDuration(clip protocol.MovementState) float64 {
	return m.durations[clip]
}

func (m *fakeModel) PlayAnimation(clip protocol.MovementState, weight, _ float64) {
	m.weights[clip] = weight
}

func (m *fakeModel) Crossfade(from, to protocol.MovementState, _ float64, rephase bool) {
	m.crossfades = append(m.crossfades, crossfade{from, to, rephase})
}

func (m *fakeModel) SetTransform(position protocol.Vec3, rotation protocol.Quat) {
	m.position = position
	m.rotation = rotation
	m.transforms++
}

// fakeAdapter holds model loads until the test completes them.
type fakeAdapter struct {
	pending  map[protocol.PlayerID][]func(render.Model)
	attached map[render.Model]bool
	detached int
	azimuth  float64
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		pending:  make(map[protocol.PlayerID][]func(render.Model)),
		attached: make(map[render.Model]bool),
	}
}

func (a *fakeAdapter) LoadModel(id protocol.PlayerID, ready func(render.Model)) {
	a.pending[id] = append(a.pending[id], ready)
}

func (a *fakeAdapter) Attach(m render.Model) {
	a.attached[m] = true
}

func (a *fakeAdapter) Detach(m render.Model) {
	delete(a.attached, m)
	a.detached++
}

func (a *fakeAdapter) CameraAzimuth() float64 {
	return a.azimuth
}

// finish completes every outstanding load for id and returns the models.
func (a *fakeAdapter) finish(id protocol.PlayerID) []*fakeModel {
	var models []*fakeModel
	for _, ready := range a.pending[id] {
		m := newFakeModel(id)
		ready(m)
		models = append(models, m)
	}
	delete(a.pending, id)
	return models
}
