// Package render is the narrow boundary between the synchronization core and
// whatever draws the scene.
package render

import "rtc-game/protocol"

// Adapter is the scene-level surface the core needs.
type Adapter interface {
	// LoadModel starts loading a player model. ready may be called from any
	// goroutine once the model is available.
	LoadModel(id protocol.PlayerID, ready func(Model))
	Attach(m Model)
	Detach(m Model)
	// CameraAzimuth is the orbit camera's azimuthal angle in radians.
	CameraAzimuth() float64
}

// Model is one loaded player representation with an Idle, Walk and Run clip.
type Model interface {
	ClipDuration(clip protocol.MovementState) float64
	PlayAnimation(clip protocol.MovementState, weight, time float64)
	Crossfade(from, to protocol.MovementState, duration float64, rephase bool)
	SetTransform(position protocol.Vec3, rotation protocol.Quat)
}
