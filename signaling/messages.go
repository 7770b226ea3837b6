package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// answerMessage is sent once the local answer is set.
type answerMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// candidateMessage forwards one locally gathered ICE candidate.
type candidateMessage struct {
	Type      string                  `json:"type"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// inboundSignal is a control-plane text frame from the server: either an
// offer or a remote candidate. The server leaves the unused field null.
type inboundSignal struct {
	SDP       *string         `json:"sdp"`
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
}

type signal struct {
	offer     *webrtc.SessionDescription
	candidate *webrtc.ICECandidateInit
}

var errEmptySignal = errors.New("signal has neither sdp nor candidate")

func parseSignal(data []byte) (signal, error) {
	var in inboundSignal
	if err := json.Unmarshal(data, &in); err != nil {
		return signal{}, fmt.Errorf("parsing signal: %w", err)
	}

	if in.SDP != nil && *in.SDP != "" {
		if in.Type != "" && in.Type != "offer" {
			return signal{}, fmt.Errorf("unexpected session description type %q", in.Type)
		}
		return signal{offer: &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: *in.SDP}}, nil
	}

	raw := bytes.TrimSpace(in.Candidate)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return signal{}, errEmptySignal
	}

	// Some servers send the bare candidate line instead of the init object.
	if raw[0] == '"' {
		var line string
		if err := json.Unmarshal(raw, &line); err != nil {
			return signal{}, fmt.Errorf("parsing candidate: %w", err)
		}
		return signal{candidate: &webrtc.ICECandidateInit{Candidate: line}}, nil
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return signal{}, fmt.Errorf("parsing candidate: %w", err)
	}
	return signal{candidate: &candidate}, nil
}
