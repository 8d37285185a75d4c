package domain

import "encoding/json"

// ClientMessage is the envelope for everything a client sends. Type is the
// only required field; snakes/food payloads are opaque to the relay and are
// forwarded byte-for-byte.
type ClientMessage struct {
	Type   string          `json:"type"`
	Room   string          `json:"room,omitempty"`
	Snakes json.RawMessage `json:"snakes,omitempty"`
	Food   json.RawMessage `json:"food,omitempty"`
}

// ServerMessage covers every typed response the relay sends.
type ServerMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Room    string `json:"room,omitempty"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

// Connection is one client's transport session. Send must not block; it may
// drop the payload if the peer is slow or gone. Close is idempotent.
type Connection interface {
	Send(data []byte) error
	Ping() error
	Close() error
}

// Relay is the room engine as seen by the transport and protocol layers.
// Connect returns the identity assigned to the connection.
type Relay interface {
	Connect(conn Connection) string
	Disconnect(conn Connection)
	CreateRoom(conn Connection)
	JoinRoom(conn Connection, code string)
	UpdateState(conn Connection, raw []byte)
	LeaveRoom(conn Connection)
	Pong(conn Connection)
	Stats() (rooms, clients int)
}

// MessageHandler interprets one inbound frame from a connection.
type MessageHandler interface {
	Handle(conn Connection, data []byte)
}
