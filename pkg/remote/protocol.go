package remote

import (
	"encoding/json"

	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/diff"
	"github.com/vango-dev/hashsync/pkg/mapping"
)

// Message types. Clients send hello once, then hashchange; the server sends
// welcome once, then sethash, change and error.
const (
	TypeHello      = "hello"
	TypeHashChange = "hashchange"
	TypeWelcome    = "welcome"
	TypeSetHash    = "sethash"
	TypeChange     = "change"
	TypeError      = "error"
)

// ClientMessage is a message sent by the browser.
type ClientMessage struct {
	Type string `json:"type"`

	// Session asks to resume a previous session (hello only).
	Session string `json:"session,omitempty"`

	// Hash is the browser's location.hash, with or without "#".
	Hash string `json:"hash"`
}

// ServerMessage is a message sent to the browser.
type ServerMessage struct {
	Type     string           `json:"type"`
	Session  string           `json:"session,omitempty"`
	Hash     *string          `json:"hash,omitempty"`
	Previous *mapping.Mapping `json:"previous,omitempty"`
	Data     *mapping.Mapping `json:"data,omitempty"`
	Diff     diff.Diff        `json:"diff,omitempty"`
	Code     string           `json:"code,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// DecodeClientMessage parses a client frame. Malformed frames and unknown
// types fail with an H400 error.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, errors.New("H400").WithDetail("invalid JSON").Wrap(err)
	}
	switch msg.Type {
	case TypeHello, TypeHashChange:
		return msg, nil
	case "":
		return ClientMessage{}, errors.New("H400").WithDetail("missing message type")
	default:
		return ClientMessage{}, errors.New("H400").WithDetailf("unknown message type %q", msg.Type)
	}
}

func hashPtr(s string) *string {
	return &s
}
