package ws

import (
	"encoding/json"
	"strconv"

	"snakeiaserver/internal/game"
)

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "join-room"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

type outbound struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// ──────────────────────────── Request / Response DTOs ─────────────────────────

type AuthenticateRequest struct {
	Token string `json:"token"`
}

type CreateRequest = game.CreateRequest

type JoinRoomRequest struct {
	Code    string `json:"code"`
	Version string `json:"version"`
}

// UnmarshalJSON takes numbers for code and version and never fails: a body
// it cannot read joins the empty code, which is answered ROOM_NOT_FOUND.
func (j *JoinRoomRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		Code    any `json:"code"`
		Version any `json:"version"`
	}
	*j = JoinRoomRequest{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	j.Code = scalarString(raw.Code)
	j.Version = scalarString(raw.Version)
	return nil
}

func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// KeyRequest accepts {"direction":"UP"} as well as a bare "UP".
type KeyRequest struct {
	Direction string `json:"direction"`
}

func (k *KeyRequest) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		k.Direction = s
		return nil
	}
	type plain KeyRequest
	return json.Unmarshal(b, (*plain)(k))
}

// Empty body for events without payload.
type NoBody struct{}

// ErrorBody is returned for protocol failures.
type ErrorBody struct {
	Error string `json:"error"`
}
