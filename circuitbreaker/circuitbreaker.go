package circuitbreaker

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// Timeout is how long an open breaker waits before letting a probe through.
var Timeout = 5 * time.Second

func onChange(name string, from gobreaker.State, to gobreaker.State) {
	entry := log.WithFields(log.Fields{"type": "breaker", "from": from.String()})
	switch to {
	case gobreaker.StateOpen:
		entry.Error(name + " breaker is open")
	case gobreaker.StateHalfOpen:
		entry.Warn(name + " breaker is half open")
	case gobreaker.StateClosed:
		entry.Info(name + " breaker is closed")
	}
}

// New returns a breaker that logs its state changes.
func New[T any](name string) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          name,
		Timeout:       Timeout,
		OnStateChange: onChange,
	})
}
