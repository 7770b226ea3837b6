// Package transport exchanges application messages over a negotiated data
// channel. Each channel message is one complete encoded message.
package transport

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"

	"rtc-game/protocol"
)

// Channel is the part of a data channel a session uses. *webrtc.DataChannel
// satisfies it.
type Channel interface {
	Label() string
	SendText(s string) error
	OnMessage(f func(msg webrtc.DataChannelMessage))
	OnClose(f func())
}

// Session sends client messages and decodes server messages on one channel.
type Session struct {
	channel Channel
	handler func(protocol.ServerMessage)
}

// NewSession subscribes to channel with handler already in place, so a
// channel that replays held messages on subscribe hands them all to handler.
func NewSession(channel Channel, handler func(protocol.ServerMessage)) *Session {
	s := &Session{channel: channel, handler: handler}
	channel.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.Deliver(msg.Data)
	})
	return s
}

func (s *Session) Label() string {
	return s.channel.Label()
}

// Send encodes msg and writes it as one text message.
func (s *Session) Send(msg protocol.ClientMessage) error {
	payload, err := protocol.EncodeClient(msg)
	if err != nil {
		return err
	}
	if err := s.channel.SendText(string(payload)); err != nil {
		return fmt.Errorf("send on %s: %w", s.channel.Label(), err)
	}
	return nil
}

// OnClose is called once the underlying channel closes.
func (s *Session) OnClose(f func()) {
	s.channel.OnClose(f)
}

// Deliver decodes one inbound payload and hands it to the handler.
func (s *Session) Deliver(payload []byte) {
	if s.handler == nil {
		log.WithField("bytes", len(payload)).Debug("No handler for server message, dropping")
		return
	}
	Dispatch(payload, s.handler)
}

// Dispatch decodes payload and calls handler. Payloads that fail to decode
// are logged and dropped.
func Dispatch(payload []byte, handler func(protocol.ServerMessage)) {
	msg, err := protocol.DecodeServer(payload)
	if err != nil {
		log.WithError(err).WithField("bytes", len(payload)).Warn("Dropping undecodable server message")
		return
	}
	handler(msg)
}
