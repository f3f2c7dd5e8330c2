package types

import "github.com/DoyleJ11/monkey-rooms-backend/internal/engine"

// ServerMessage is a websocket frame sent to a client. Client frames are
// update bodies and go through DecodeUpdate.
type ServerMessage struct {
	Type    string       `json:"type"` // "RoomSnapshot" | "RoomClosed" | "Error"
	Version int          `json:"version,omitempty"`
	Room    *engine.Room `json:"room,omitempty"`
	Error   string       `json:"error,omitempty"`
}
