// Package socket implements the Socket Endpoint (C5): the per-device
// websocket connection, its REGISTERED → SERVING → CLOSING lifecycle,
// and the node-local table the Node Consumer reads from to deliver
// messages to connected devices.
package socket

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Conn wraps one device's websocket connection. Fasthttp/gorilla
// websocket connections are not safe for concurrent writers, so every
// write takes writeMu even though reads happen on a single owning
// goroutine per Conn.
type Conn struct {
	UserID   uuid.UUID
	DeviceID uuid.UUID

	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

func newConn(userID, deviceID uuid.UUID, ws *websocket.Conn) *Conn {
	return &Conn{UserID: userID, DeviceID: deviceID, ws: ws}
}

// WriteText sends a text frame. Returns an error if the connection is
// closed or the underlying write fails; callers treat either as "drop
// silently" per the delivery invariant.
func (c *Conn) WriteText(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return errClosed
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.ws.Close()
}

var errClosed = connClosedError{}

type connClosedError struct{}

func (connClosedError) Error() string { return "socket: connection closed" }

// Table is the node-local map of every connected device, guarded by a
// reader-writer mutex: the Node Consumer takes RLock to snapshot targets
// for delivery, Register/Unregister take Lock to mutate membership.
type Table struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[uuid.UUID]*Conn
}

func NewTable() *Table {
	return &Table{conns: make(map[uuid.UUID]map[uuid.UUID]*Conn)}
}

// Register adds a connection under (userID, deviceID), replacing and
// closing any prior connection for the same device (a device may only
// hold one live socket per node).
func (t *Table) Register(userID, deviceID uuid.UUID, ws *websocket.Conn) *Conn {
	conn := newConn(userID, deviceID, ws)

	t.mu.Lock()
	defer t.mu.Unlock()

	devices, ok := t.conns[userID]
	if !ok {
		devices = make(map[uuid.UUID]*Conn)
		t.conns[userID] = devices
	}
	if prior, ok := devices[deviceID]; ok {
		prior.close()
	}
	devices[deviceID] = conn
	return conn
}

// Unregister removes a connection, closing it if still present. A no-op
// if the device was already replaced or removed (compare-and-drop).
func (t *Table) Unregister(conn *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	devices, ok := t.conns[conn.UserID]
	if !ok {
		return
	}
	if current, ok := devices[conn.DeviceID]; ok && current == conn {
		current.close()
		delete(devices, conn.DeviceID)
	}
	if len(devices) == 0 {
		delete(t.conns, conn.UserID)
	}
}

// Lookup returns the connection for (userID, deviceID), if present. A
// connection found closed between snapshot and use is treated as absent
// by the caller attempting the write, never as a panic.
func (t *Table) Lookup(userID, deviceID uuid.UUID) (*Conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	devices, ok := t.conns[userID]
	if !ok {
		return nil, false
	}
	conn, ok := devices[deviceID]
	return conn, ok
}
