// apps/go-server/internal/events/envelope.go
//
// Wire frames of the play event stream: {"t": type, "p": payload}.

package events

import (
	"encoding/json"
	"fmt"

	"github.com/robalobadob/tankguess/apps/go-server/internal/session"
)

// Message types on the event stream.
const (
	MsgWelcome  = "welcome"
	MsgState    = "state"
	MsgRoundEnd = "round_end"
	MsgError    = "error"
)

// Envelope is the wire frame: a type tag and its raw JSON payload.
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

// Welcome is sent once after a subscriber connects.
type Welcome struct {
	PlayerID string       `json:"playerId"`
	View     session.View `json:"view"`
}

// RoundEnd is the payload of a round_end frame.
type RoundEnd struct {
	End  *session.RoundEnd `json:"end"`
	View session.View      `json:"view"`
}

// ErrorFrame is the payload of an error frame.
type ErrorFrame struct {
	Message string       `json:"message"`
	View    session.View `json:"view"`
}

func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode envelope: empty type")
	}
	if payload == nil {
		return nil, fmt.Errorf("encode envelope %q: nil payload", t)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{T: t, P: pb})
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("decode envelope: empty frame")
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	err := json.Unmarshal(env.P, &out)
	return out, err
}

// frame converts a screen event to its wire form.
func frame(ev session.Event) ([]byte, error) {
	switch ev.Kind {
	case session.EventRoundEnd:
		return Encode(MsgRoundEnd, RoundEnd{End: ev.End, View: ev.View})
	case session.EventError:
		return Encode(MsgError, ErrorFrame{Message: ev.Error, View: ev.View})
	default:
		return Encode(MsgState, ev.View)
	}
}
