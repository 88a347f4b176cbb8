// Package callback encodes the payload carried by inline action buttons.
//
// Payloads are compact JSON objects. New buttons always use single-letter
// keys; buttons still alive in chat history may carry the older full names
// and are decoded the same way.
package callback

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxSize is the platform limit for callback data, in bytes.
const MaxSize = 64

// Action names an inline-button operation.
type Action string

const (
	ActionEdit       Action = "edit"
	ActionDelete     Action = "delete"
	ActionCancelEdit Action = "cancel_edit"
)

// ErrInvalid is returned for payloads that cannot address a relayed message.
var ErrInvalid = errors.New("callback: invalid payload")

// Payload is a decoded button action referencing one relayed message.
type Payload struct {
	Action    Action
	MessageID int
	UserID    int64
}

type compact struct {
	A Action `json:"a"`
	M int    `json:"m"`
	U int64  `json:"u"`
}

// wire accepts both key spellings.
type wire struct {
	A         Action `json:"a"`
	M         int    `json:"m"`
	U         int64  `json:"u"`
	Action    Action `json:"action"`
	MessageID int    `json:"message_id"`
	UserID    int64  `json:"user_id"`
}

// Encode renders p in canonical compact form.
func Encode(p Payload) (string, error) {
	if !p.Action.valid() {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalid, p.Action)
	}
	b, err := json.Marshal(compact{A: p.Action, M: p.MessageID, U: p.UserID})
	if err != nil {
		return "", err
	}
	if len(b) > MaxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalid, len(b), MaxSize)
	}
	return string(b), nil
}

// MustEncode is Encode for payloads built from trusted ids.
func MustEncode(a Action, messageID int, userID int64) string {
	s, err := Encode(Payload{Action: a, MessageID: messageID, UserID: userID})
	if err != nil {
		panic(err)
	}
	return s
}

// Decode parses data in either the compact or the full-name form.
func Decode(data string) (Payload, error) {
	var w wire
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	p := Payload{Action: w.Action, MessageID: w.MessageID, UserID: w.UserID}
	if p.Action == "" {
		p.Action = w.A
	}
	if p.MessageID == 0 {
		p.MessageID = w.M
	}
	if p.UserID == 0 {
		p.UserID = w.U
	}
	if !p.Action.valid() || p.MessageID <= 0 || p.UserID == 0 {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalid, data)
	}
	return p, nil
}

func (a Action) valid() bool {
	switch a {
	case ActionEdit, ActionDelete, ActionCancelEdit:
		return true
	}
	return false
}
