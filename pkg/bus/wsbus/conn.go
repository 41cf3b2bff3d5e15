package wsbus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soundboard/playerctld/internal/corelog"
)

// Conn wraps a gorilla websocket.Conn with the JSON framing wsbus uses
// and serializes writes, mirroring the teacher's SocketConn (one
// connection, one writer at a time, reads happen on a dedicated
// goroutine).
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan Message
}

// NewConn wraps an already-established websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, pending: make(map[string]chan Message)}
}

// Send writes a frame with no expectation of a reply (fire-and-forget
// commands like start/stop/pause).
func (c *Conn) Send(event string, data any) error {
	msg, err := encode(event, "", data)
	if err != nil {
		return err
	}
	return c.writeRaw(msg)
}

// Request writes a frame carrying a fresh request id and blocks until
// a CMD_REPLY frame correlated to it arrives via Dispatch, or returns
// an error if the connection's read loop stops first.
func (c *Conn) Request(event string, data any) (Message, error) {
	reqID := uuid.NewString()
	msg, err := encode(event, reqID, data)
	if err != nil {
		return Message{}, err
	}

	replyCh := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = replyCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	if err := c.writeRaw(msg); err != nil {
		return Message{}, err
	}

	reply, ok := <-replyCh
	if !ok {
		return Message{}, fmt.Errorf("wsbus: connection closed while awaiting reply to %s", event)
	}
	return reply, nil
}

func (c *Conn) writeRaw(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

// Reply sends a CMD_REPLY frame correlated to requestID — used by the
// side of the connection that is answering a Request.
func (c *Conn) Reply(requestID string, data any) error {
	msg, err := encode(EventCmdReply, requestID, data)
	if err != nil {
		return err
	}
	return c.writeRaw(msg)
}

// readLoop reads frames until the connection closes, dispatching
// CMD_REPLY frames to whatever Request is waiting on them and
// everything else to onMessage.
func (c *Conn) readLoop(onMessage func(Message)) {
	defer c.closeAllPending()
	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			corelog.For("wsbus").Debug().Err(err).Msg("connection read loop ended")
			return
		}
		if msg.Event == EventCmdReply && msg.RequestID != "" {
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.RequestID]
			c.pendingMu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}
		if onMessage != nil {
			onMessage(msg)
		}
	}
}

func (c *Conn) closeAllPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}
