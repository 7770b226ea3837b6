package render

import (
	"math"
	"sync"
	"time"

	"rtc-game/protocol"

	log "github.com/sirupsen/logrus"
)

// Clip lengths of the soldier rig, in seconds.
var soldierClips = map[protocol.MovementState]float64{
	protocol.Idle: 2.0,
	protocol.Walk: 1.0,
	protocol.Run:  0.7,
}

// Headless is an Adapter without a scene. Models "load" after a delay and
// every scene operation is logged.
type Headless struct {
	loadDelay time.Duration

	mu       sync.Mutex
	azimuth  float64
	attached map[*HeadlessModel]struct{}
}

func NewHeadless(loadDelay time.Duration, azimuth float64) *Headless {
	return &Headless{
		loadDelay: loadDelay,
		azimuth:   azimuth,
		attached:  make(map[*HeadlessModel]struct{}),
	}
}

func (h *Headless) LoadModel(id protocol.PlayerID, ready func(Model)) {
	model := &HeadlessModel{id: id}
	time.AfterFunc(h.loadDelay, func() {
		log.WithField("player", id).Debug("Model loaded")
		ready(model)
	})
}

func (h *Headless) Attach(m Model) {
	model, ok := m.(*HeadlessModel)
	if !ok {
		return
	}
	h.mu.Lock()
	h.attached[model] = struct{}{}
	h.mu.Unlock()
	log.WithField("player", model.id).Info("Attached player model")
}

func (h *Headless) Detach(m Model) {
	model, ok := m.(*HeadlessModel)
	if !ok {
		return
	}
	h.mu.Lock()
	delete(h.attached, model)
	h.mu.Unlock()
	log.WithField("player", model.id).Info("Detached player model")
}

func (h *Headless) CameraAzimuth() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.azimuth
}

// SetCameraAzimuth turns the virtual camera, wrapping to (-π, π].
func (h *Headless) SetCameraAzimuth(angle float64) {
	h.mu.Lock()
	h.azimuth = math.Atan2(math.Sin(angle), math.Cos(angle))
	h.mu.Unlock()
}

// Attached returns the number of models currently in the scene.
func (h *Headless) Attached() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.attached)
}

// HeadlessModel remembers the last pose it was given.
type HeadlessModel struct {
	id protocol.PlayerID

	mu       sync.Mutex
	weights  [len(protocol.MovementStates)]float64
	position protocol.Vec3
	rotation protocol.Quat
}

func (m *HeadlessModel) ClipDuration(clip protocol.MovementState) float64 {
	return soldierClips[clip]
}

func (m *HeadlessModel) PlayAnimation(clip protocol.MovementState, weight, _ float64) {
	if int(clip) >= len(m.weights) {
		return
	}
	m.mu.Lock()
	m.weights[clip] = weight
	m.mu.Unlock()
}

func (m *HeadlessModel) Crossfade(from, to protocol.MovementState, duration float64, rephase bool) {
	log.WithFields(log.Fields{
		"player":   m.id,
		"from":     from,
		"to":       to,
		"duration": duration,
		"rephase":  rephase,
	}).Debug("Cross-fading animation")
}

func (m *HeadlessModel) SetTransform(position protocol.Vec3, rotation protocol.Quat) {
	m.mu.Lock()
	m.position = position
	m.rotation = rotation
	m.mu.Unlock()
}

func (m *HeadlessModel) Weight(clip protocol.MovementState) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.weights[clip]
}

// Pose returns the last transform applied to the model.
func (m *HeadlessModel) Pose() (protocol.Vec3, protocol.Quat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position, m.rotation
}
