package websocket

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"snake-relay-server/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Conn adapts a gorilla websocket connection to domain.Connection. Outbound
// frames and liveness pings go through buffered channels so the single writer
// goroutine owns all writes.
type Conn struct {
	ws      *websocket.Conn
	send    chan []byte
	pings   chan struct{}
	done    chan struct{}
	relay   domain.Relay
	handler domain.MessageHandler
	id      string
}

func NewConn(ws *websocket.Conn, relay domain.Relay, handler domain.MessageHandler) *Conn {
	return &Conn{
		ws:      ws,
		send:    make(chan []byte, sendBuffer),
		pings:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		relay:   relay,
		handler: handler,
	}
}

// Send enqueues a frame, dropping it when the buffer is full. A slow reader
// must not stall the room it shares.
func (c *Conn) Send(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

// Ping requests a liveness probe from the writer goroutine.
func (c *Conn) Ping() error {
	select {
	case c.pings <- struct{}{}:
	default:
	}
	return nil
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// Start registers with the relay and spins up the read/write pumps.
func (c *Conn) Start() {
	c.id = c.relay.Connect(c)
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.relay.Disconnect(c)
		c.ws.Close()
		close(c.done)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.relay.Pong(c)
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}

		c.handler.Handle(c, data)
	}
}

func (c *Conn) writePump() {
	defer c.ws.Close()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.pings:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
