package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"snake-relay-server/domain"
	"snake-relay-server/metrics"
)

// RoomCapacity is the maximum number of simultaneous members per room.
const RoomCapacity = 10

type handle struct {
	id    string
	room  string // current room code, "" if none
	alive bool
}

type room struct {
	code      string
	members   map[domain.Connection]string // connection -> identity
	lastState []byte
}

// Engine owns the room registry and the connection set. Every mutation of
// either goes through one mutex, so room operations are linearized.
type Engine struct {
	interval time.Duration
	bus      *Bus // nil when cross-instance fanout is disabled

	mu    sync.Mutex
	conns map[domain.Connection]*handle
	rooms map[string]*room
}

func New(pingInterval time.Duration, bus *Bus) *Engine {
	return &Engine{
		interval: pingInterval,
		bus:      bus,
		conns:    make(map[domain.Connection]*handle),
		rooms:    make(map[string]*room),
	}
}

// Connect registers a new connection, assigns its identity and acknowledges it.
func (e *Engine) Connect(conn domain.Connection) string {
	id := uuid.New().String()

	e.mu.Lock()
	e.conns[conn] = &handle{id: id, alive: true}
	total := len(e.conns)
	e.mu.Unlock()

	send(conn, domain.ServerMessage{Type: "connected", ID: id})
	metrics.ConnectionsActive.Inc()
	slog.Info("client connected", "clientId", id, "clients", total)
	return id
}

// Disconnect runs leave cleanup and drops the connection. Safe to call more
// than once for the same connection.
func (e *Engine) Disconnect(conn domain.Connection) {
	e.mu.Lock()
	h, ok := e.conns[conn]
	if !ok {
		e.mu.Unlock()
		return
	}
	e.leaveLocked(conn, h)
	delete(e.conns, conn)
	e.mu.Unlock()

	metrics.ConnectionsActive.Dec()
	slog.Info("client disconnected", "clientId", h.id)
}

// CreateRoom allocates a fresh room and moves the sender into it.
func (e *Engine) CreateRoom(conn domain.Connection) {
	e.mu.Lock()
	h, ok := e.conns[conn]
	if !ok {
		e.mu.Unlock()
		return
	}
	code := e.newCodeLocked()
	rm := &room{code: code, members: make(map[domain.Connection]string)}
	e.rooms[code] = rm
	metrics.RoomsActive.Inc()

	send(conn, domain.ServerMessage{Type: "room_created", Room: code})
	e.joinLocked(conn, h, rm)
	e.mu.Unlock()

	slog.Info("room created", "room", code, "clientId", h.id)
}

// JoinRoom moves the sender into the room with the given code, leaving any
// prior room first. Codes are matched case-insensitively.
func (e *Engine) JoinRoom(conn domain.Connection, code string) {
	code = strings.ToUpper(strings.TrimSpace(code))

	e.mu.Lock()
	h, ok := e.conns[conn]
	if !ok {
		e.mu.Unlock()
		return
	}
	rm, ok := e.rooms[code]
	if !ok {
		e.mu.Unlock()
		send(conn, domain.ServerMessage{Type: "error", Message: "Room not found"})
		return
	}
	if _, member := rm.members[conn]; !member && len(rm.members) >= RoomCapacity {
		e.mu.Unlock()
		send(conn, domain.ServerMessage{Type: "error", Message: "Room full"})
		return
	}
	e.joinLocked(conn, h, rm)
	count := len(rm.members)
	e.mu.Unlock()

	slog.Info("client joined room", "room", code, "clientId", h.id, "clients", count)
}

// UpdateState stores the payload as the room's latest state and broadcasts it
// to every current member, sender included. Dropped silently when the sender
// is not in a room.
func (e *Engine) UpdateState(conn domain.Connection, raw []byte) {
	e.mu.Lock()
	h, ok := e.conns[conn]
	if !ok || h.room == "" {
		e.mu.Unlock()
		return
	}
	rm, ok := e.rooms[h.room]
	if !ok {
		e.mu.Unlock()
		return
	}
	rm.lastState = raw
	e.broadcastLocked(rm, raw)
	code := rm.code
	e.mu.Unlock()

	metrics.StatesRelayed.Inc()
	if e.bus != nil {
		_ = e.bus.Publish(context.Background(), code, raw)
	}
}

// LeaveRoom removes the sender from its room, if any.
func (e *Engine) LeaveRoom(conn domain.Connection) {
	e.mu.Lock()
	if h, ok := e.conns[conn]; ok {
		e.leaveLocked(conn, h)
	}
	e.mu.Unlock()
}

// Pong marks the connection alive until the next liveness tick.
func (e *Engine) Pong(conn domain.Connection) {
	e.mu.Lock()
	if h, ok := e.conns[conn]; ok {
		h.alive = true
	}
	e.mu.Unlock()
}

// Run drives the liveness monitor and, when configured, the fanout bus.
// Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	if e.bus != nil {
		go e.bus.Subscribe(ctx, e.applyRemoteState)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.tick()
		case <-ctx.Done():
			return
		}
	}
}

// tick probes every connection and evicts the ones that never answered the
// previous probe. Two ticks without a pong closes the connection.
func (e *Engine) tick() {
	e.mu.Lock()
	var stale []domain.Connection
	for conn, h := range e.conns {
		if !h.alive {
			stale = append(stale, conn)
			continue
		}
		h.alive = false
		_ = conn.Ping()
	}
	for _, conn := range stale {
		h := e.conns[conn]
		e.leaveLocked(conn, h)
		delete(e.conns, conn)
		_ = conn.Close()
		metrics.ConnectionsActive.Dec()
		metrics.StaleEvictions.Inc()
		slog.Info("stale client evicted", "clientId", h.id)
	}
	e.mu.Unlock()
}

func (e *Engine) Stats() (rooms, clients int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rooms), len(e.conns)
}

// joinLocked adds conn to rm after fully removing it from any prior room, so
// a connection never belongs to two rooms at once.
func (e *Engine) joinLocked(conn domain.Connection, h *handle, rm *room) {
	e.leaveLocked(conn, h)
	// Rejoining your own single-member room empties and deletes it in the
	// interim; put it back.
	if _, ok := e.rooms[rm.code]; !ok {
		e.rooms[rm.code] = rm
		metrics.RoomsActive.Inc()
	}
	rm.members[conn] = h.id
	h.room = rm.code

	send(conn, domain.ServerMessage{Type: "joined", Room: rm.code, ID: h.id})
	if rm.lastState != nil {
		_ = conn.Send(rm.lastState)
	}
	e.broadcastLocked(rm, marshal(domain.ServerMessage{Type: "players", Count: len(rm.members)}))
}

// leaveLocked detaches conn from its room. Deletes the room when it becomes
// empty, otherwise tells the remaining members the new head count.
func (e *Engine) leaveLocked(conn domain.Connection, h *handle) {
	if h.room == "" {
		return
	}
	rm, ok := e.rooms[h.room]
	h.room = ""
	if !ok {
		return
	}
	delete(rm.members, conn)
	if len(rm.members) == 0 {
		delete(e.rooms, rm.code)
		metrics.RoomsActive.Dec()
		slog.Info("room removed", "room", rm.code)
		return
	}
	e.broadcastLocked(rm, marshal(domain.ServerMessage{Type: "players", Count: len(rm.members)}))
}

func (e *Engine) broadcastLocked(rm *room, payload []byte) {
	for member := range rm.members {
		_ = member.Send(payload)
	}
}

// applyRemoteState handles a state payload relayed from another instance.
func (e *Engine) applyRemoteState(code string, raw []byte) {
	e.mu.Lock()
	if rm, ok := e.rooms[code]; ok {
		rm.lastState = raw
		e.broadcastLocked(rm, raw)
	}
	e.mu.Unlock()
}

func send(conn domain.Connection, msg domain.ServerMessage) {
	_ = conn.Send(marshal(msg))
}

func marshal(msg domain.ServerMessage) []byte {
	b, _ := json.Marshal(msg)
	return b
}
