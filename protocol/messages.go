package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Wire keys selecting a message variant.
const (
	KeyUpdate       = "Update"
	KeyMove         = "Move"
	KeyPlayerJoined = "PlayerJoined"
	KeyPlayerLeft   = "PlayerLeft"
)

// PlayerID identifies a connected player. It is unique among connected
// players and may be reused after the player leaves.
type PlayerID string

// UnmarshalJSON accepts both string and integer ids; the reference server
// numbers its connections.
func (id *PlayerID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return errors.New("player id must not be null")
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			return errors.New("player id must not be empty")
		}
		*id = PlayerID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("player id must be a string or integer: %w", err)
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("player id %s is not an unsigned integer", n)
	}
	*id = PlayerID(n.String())
	return nil
}

// MovementState is the coarse locomotion state driving animation.
type MovementState int

const (
	Idle MovementState = iota
	Walk
	Run
)

// MovementStates lists every state in clip order.
var MovementStates = [...]MovementState{Idle, Walk, Run}

func (m MovementState) String() string {
	switch m {
	case Idle:
		return "Idle"
	case Walk:
		return "Walk"
	case Run:
		return "Run"
	}
	return "MovementState(" + strconv.Itoa(int(m)) + ")"
}

func (m MovementState) MarshalText() ([]byte, error) {
	switch m {
	case Idle, Walk, Run:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("invalid movement state %d", int(m))
}

func (m *MovementState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Idle":
		*m = Idle
	case "Walk":
		*m = Walk
	case "Run":
		*m = Run
	default:
		return fmt.Errorf("unknown movement state %q", text)
	}
	return nil
}

// Vec3 is an ordered x, y, z triple.
type Vec3 [3]float64

func (v *Vec3) UnmarshalJSON(data []byte) error {
	return unmarshalFixed(data, v[:], "vec3")
}

// Quat is a quaternion in x, y, z, w order.
type Quat [4]float64

// IdentityQuat is the zero rotation.
var IdentityQuat = Quat{0, 0, 0, 1}

func (q *Quat) UnmarshalJSON(data []byte) error {
	return unmarshalFixed(data, q[:], "quaternion")
}

func unmarshalFixed(data []byte, dst []float64, what string) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if len(values) != len(dst) {
		return fmt.Errorf("%s must have %d components, got %d", what, len(dst), len(values))
	}
	copy(dst, values)
	return nil
}

// PlayerState is one player's kinematic snapshot.
type PlayerState struct {
	Position      Vec3          `json:"position"`
	Up            Vec3          `json:"up"`
	Rotate        Quat          `json:"rotate"`
	MovementState MovementState `json:"movement_state"`
}

// DefaultPlayerState is a player standing idle at the origin.
func DefaultPlayerState() PlayerState {
	return PlayerState{
		Up:            Vec3{0, 1, 0},
		Rotate:        IdentityQuat,
		MovementState: Idle,
	}
}

// UnmarshalJSON requires every field to be present.
func (s *PlayerState) UnmarshalJSON(data []byte) error {
	var raw struct {
		Position      *Vec3          `json:"position"`
		Up            *Vec3          `json:"up"`
		Rotate        *Quat          `json:"rotate"`
		MovementState *MovementState `json:"movement_state"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Position == nil:
		return missingField("position")
	case raw.Up == nil:
		return missingField("up")
	case raw.Rotate == nil:
		return missingField("rotate")
	case raw.MovementState == nil:
		return missingField("movement_state")
	}

	*s = PlayerState{
		Position:      *raw.Position,
		Up:            *raw.Up,
		Rotate:        *raw.Rotate,
		MovementState: *raw.MovementState,
	}
	return nil
}

func missingField(name string) error {
	return fmt.Errorf("missing field %q", name)
}

// ClientMessage is sent by the tracked player.
type ClientMessage interface {
	clientMessage()
}

// PlayerUpdate carries the tracked player's full state.
type PlayerUpdate struct {
	State PlayerState
}

// Move carries a position only. Older clients send it; this client never does.
type Move struct {
	Position Vec3
}

func (PlayerUpdate) clientMessage() {}
func (Move) clientMessage()         {}

// ServerMessage is sent by the coordination server.
type ServerMessage interface {
	serverMessage()
}

// WorldUpdate carries the latest state of every connected player.
type WorldUpdate struct {
	Players map[PlayerID]PlayerState
}

type PlayerJoined struct {
	ID PlayerID
}

type PlayerLeft struct {
	ID PlayerID
}

func (WorldUpdate) serverMessage()  {}
func (PlayerJoined) serverMessage() {}
func (PlayerLeft) serverMessage()   {}
