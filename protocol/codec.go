package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// DecodeError reports a payload that does not match the wire format. The
// session drops the offending message and carries on.
type DecodeError struct {
	Key    string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decode")
	if e.Key != "" {
		b.WriteString(" ")
		b.WriteString(e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeClient serializes a client message as a single-key JSON object.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	switch m := msg.(type) {
	case PlayerUpdate:
		return envelope(KeyUpdate, m.State)
	case Move:
		return envelope(KeyMove, m.Position)
	}
	return nil, fmt.Errorf("encode: unsupported client message %T", msg)
}

// EncodeServer serializes a server message as a single-key JSON object.
func EncodeServer(msg ServerMessage) ([]byte, error) {
	switch m := msg.(type) {
	case WorldUpdate:
		players := m.Players
		if players == nil {
			players = map[PlayerID]PlayerState{}
		}
		return envelope(KeyUpdate, players)
	case PlayerJoined:
		return envelope(KeyPlayerJoined, m.ID)
	case PlayerLeft:
		return envelope(KeyPlayerLeft, m.ID)
	}
	return nil, fmt.Errorf("encode: unsupported server message %T", msg)
}

// DecodeServer parses a payload received from the server.
func DecodeServer(data []byte) (ServerMessage, error) {
	key, body, err := split(data)
	if err != nil {
		return nil, err
	}

	switch key {
	case KeyUpdate:
		var players map[PlayerID]PlayerState
		if err := unmarshalBody(key, body, &players); err != nil {
			return nil, err
		}
		if players == nil {
			return nil, &DecodeError{Key: key, Reason: "expected an object of player states"}
		}
		return WorldUpdate{Players: players}, nil
	case KeyPlayerJoined:
		var id PlayerID
		if err := unmarshalBody(key, body, &id); err != nil {
			return nil, err
		}
		return PlayerJoined{ID: id}, nil
	case KeyPlayerLeft:
		var id PlayerID
		if err := unmarshalBody(key, body, &id); err != nil {
			return nil, err
		}
		return PlayerLeft{ID: id}, nil
	}
	return nil, &DecodeError{Key: key, Reason: "unknown server message"}
}

// DecodeClient parses a payload received from a client. Both protocol
// revisions are recognized.
func DecodeClient(data []byte) (ClientMessage, error) {
	key, body, err := split(data)
	if err != nil {
		return nil, err
	}

	switch key {
	case KeyUpdate:
		var state PlayerState
		if err := unmarshalBody(key, body, &state); err != nil {
			return nil, err
		}
		return PlayerUpdate{State: state}, nil
	case KeyMove:
		var pos Vec3
		if err := unmarshalBody(key, body, &pos); err != nil {
			return nil, err
		}
		return Move{Position: pos}, nil
	}
	return nil, &DecodeError{Key: key, Reason: "unknown client message"}
}

func envelope(key string, body any) ([]byte, error) {
	b, err := json.Marshal(map[string]any{key: body})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return b, nil
}

func split(data []byte) (string, json.RawMessage, error) {
	if !utf8.Valid(data) {
		return "", nil, &DecodeError{Reason: "payload is not valid UTF-8"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, &DecodeError{Reason: "payload is not a JSON object", Err: err}
	}
	if fields == nil {
		return "", nil, &DecodeError{Reason: "payload is not a JSON object"}
	}

	switch len(fields) {
	case 0:
		return "", nil, &DecodeError{Reason: "no variant key"}
	case 1:
		for key, body := range fields {
			return key, body, nil
		}
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return "", nil, &DecodeError{Reason: "expected exactly one variant key, got " + strings.Join(keys, ", ")}
}

func unmarshalBody(key string, body json.RawMessage, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return &DecodeError{Key: key, Reason: "malformed body", Err: err}
	}
	return nil
}
