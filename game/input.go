package game

// Key is a logical movement control.
type Key int

const (
	KeyForward Key = iota
	KeyBackward
	KeyLeft
	KeyRight
	KeySprint
)

// Browser key codes for each control, including AZERTY layouts.
var keyCodes = map[string]Key{
	"ArrowUp":    KeyForward,
	"KeyW":       KeyForward,
	"KeyZ":       KeyForward,
	"ArrowDown":  KeyBackward,
	"KeyS":       KeyBackward,
	"ArrowLeft":  KeyLeft,
	"KeyA":       KeyLeft,
	"KeyQ":       KeyLeft,
	"ArrowRight": KeyRight,
	"KeyD":       KeyRight,
	"ShiftLeft":  KeySprint,
	"ShiftRight": KeySprint,
}

// KeyForCode resolves a key code such as "KeyW" to a control.
func KeyForCode(code string) (Key, bool) {
	k, ok := keyCodes[code]
	return k, ok
}

// Axes is the held direction: X is -1 left / +1 right, Z is -1 forward /
// +1 backward.
type Axes struct {
	X      float64
	Z      float64
	Sprint bool
}

// Input tracks held keys. The most recent press on an axis wins; releasing
// a key only clears the axis if it is still the one pushing it.
type Input struct {
	axes Axes
}

func (in *Input) Press(k Key) {
	switch k {
	case KeyForward:
		in.axes.Z = -1
	case KeyBackward:
		in.axes.Z = 1
	case KeyLeft:
		in.axes.X = -1
	case KeyRight:
		in.axes.X = 1
	case KeySprint:
		in.axes.Sprint = true
	}
}

func (in *Input) Release(k Key) {
	switch k {
	case KeyForward:
		if in.axes.Z < 0 {
			in.axes.Z = 0
		}
	case KeyBackward:
		if in.axes.Z > 0 {
			in.axes.Z = 0
		}
	case KeyLeft:
		if in.axes.X < 0 {
			in.axes.X = 0
		}
	case KeyRight:
		if in.axes.X > 0 {
			in.axes.X = 0
		}
	case KeySprint:
		in.axes.Sprint = false
	}
}

// Held reports whether k is currently the active key on its axis.
func (in *Input) Held(k Key) bool {
	switch k {
	case KeyForward:
		return in.axes.Z < 0
	case KeyBackward:
		return in.axes.Z > 0
	case KeyLeft:
		return in.axes.X < 0
	case KeyRight:
		return in.axes.X > 0
	case KeySprint:
		return in.axes.Sprint
	}
	return false
}

func (in *Input) Axes() Axes {
	return in.axes
}
