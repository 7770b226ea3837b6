package nats

import (
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"rtc-game/circuitbreaker"
)

// Publisher publishes to NATS behind a circuit breaker. A publisher with no
// connection drops everything, so callers need not check for one.
type Publisher struct {
	conn    *nats.Conn
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// Connect dials natsURL. An empty URL or a failed dial yields a publisher
// that drops messages.
func Connect(natsURL string) *Publisher {
	p := &Publisher{breaker: circuitbreaker.New[struct{}]("nats")}
	if natsURL == "" {
		log.Info("No nats server configured")
		return p
	}

	c, err := nats.Connect(natsURL)
	if err != nil {
		log.WithError(err).Error("Failed to connect to nats")
		return p
	}

	log.Info("Connected to nats at ", natsURL)
	p.conn = c
	return p
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.conn != nil
}

func (p *Publisher) Publish(subject string, data []byte) {
	if !p.Enabled() {
		return
	}
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.conn.Publish(subject, data)
	})
	if err != nil {
		log.WithError(err).WithField("subject", subject).Debug("Failed to publish message")
	}
}

func (p *Publisher) Close() {
	if !p.Enabled() {
		return
	}
	if err := p.conn.Drain(); err != nil {
		log.WithError(err).Warn("Failed to drain nats connection")
	}
}
