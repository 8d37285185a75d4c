package protocol

import (
	"encoding/json"
	"log/slog"

	"snake-relay-server/domain"
)

type Handler struct {
	relay domain.Relay
}

func NewHandler(r domain.Relay) *Handler {
	return &Handler{relay: r}
}

// Handle parses one inbound frame and dispatches on its type. Malformed and
// unrecognized frames are dropped; a bad client must not take a room down.
func (h *Handler) Handle(conn domain.Connection, data []byte) {
	var msg domain.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("invalid message", "error", err)
		return
	}

	switch msg.Type {
	case "create":
		h.relay.CreateRoom(conn)
	case "join":
		h.relay.JoinRoom(conn, msg.Room)
	case "state":
		h.relay.UpdateState(conn, data)
	case "leave":
		h.relay.LeaveRoom(conn)
	default:
		slog.Debug("unknown message type", "type", msg.Type)
	}
}
