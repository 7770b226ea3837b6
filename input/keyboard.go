// Package input turns terminal keystrokes into movement controls.
//
// A terminal reports presses but never releases, so keys toggle: the first
// press holds a control and the next releases it.
package input

import (
	"context"
	"errors"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"rtc-game/game"
)

// Sink receives control changes. *game.Controller satisfies it.
type Sink interface {
	KeyDown(k game.Key)
	KeyUp(k game.Key)
}

var keyBytes = map[byte]game.Key{
	'w': game.KeyForward,
	's': game.KeyBackward,
	'a': game.KeyLeft,
	'd': game.KeyRight,
	' ': game.KeySprint,
}

// Escape sequence finals for the arrow keys.
var arrowKeys = map[byte]game.Key{
	'A': game.KeyForward,
	'B': game.KeyBackward,
	'C': game.KeyRight,
	'D': game.KeyLeft,
}

var opposite = map[game.Key]game.Key{
	game.KeyForward:  game.KeyBackward,
	game.KeyBackward: game.KeyForward,
	game.KeyLeft:     game.KeyRight,
	game.KeyRight:    game.KeyLeft,
}

// ErrQuit is returned by Run when the user asks to leave.
var ErrQuit = errors.New("quit requested")

type Keyboard struct {
	sink Sink
	held map[game.Key]bool
	// escape counts bytes of an arrow key sequence seen so far.
	escape int
}

func NewKeyboard(sink Sink) *Keyboard {
	return &Keyboard{sink: sink, held: make(map[game.Key]bool)}
}

// Feed handles a chunk of terminal input. It reports whether a quit key
// was pressed.
func (k *Keyboard) Feed(b []byte) bool {
	for _, c := range b {
		switch {
		case k.escape == 1:
			if c == '[' {
				k.escape = 2
			} else {
				k.escape = 0
			}
			continue
		case k.escape == 2:
			k.escape = 0
			if key, ok := arrowKeys[c]; ok {
				k.toggle(key)
			}
			continue
		}

		switch c {
		case 0x1b:
			k.escape = 1
		case 'q', 0x03:
			k.releaseAll()
			return true
		case 'x':
			k.releaseAll()
		default:
			if key, ok := keyBytes[c]; ok {
				k.toggle(key)
			}
		}
	}
	return false
}

func (k *Keyboard) toggle(key game.Key) {
	if k.held[key] {
		k.held[key] = false
		k.sink.KeyUp(key)
		return
	}
	if other, ok := opposite[key]; ok && k.held[other] {
		k.held[other] = false
		k.sink.KeyUp(other)
	}
	k.held[key] = true
	k.sink.KeyDown(key)
}

func (k *Keyboard) releaseAll() {
	for key, held := range k.held {
		if held {
			k.held[key] = false
			k.sink.KeyUp(key)
		}
	}
}

// Run feeds r to the keyboard until it ends, ctx is done or quit is pressed.
func (k *Keyboard) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n > 0 && k.Feed(buf[:n]) {
			return ErrQuit
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// RunTerminal puts stdin in raw mode and reads controls from it.
func RunTerminal(ctx context.Context, sink Sink) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("stdin is not a terminal")
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	log.Info("Keyboard: w/a/s/d or arrows toggle movement, space toggles sprint, x stops, q quits")
	return NewKeyboard(sink).Run(ctx, os.Stdin)
}
