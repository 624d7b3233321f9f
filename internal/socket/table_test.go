package socket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise Table's map bookkeeping directly, constructing
// Conn values with closed: true so Unregister's close() call never
// reaches the (nil, in these tests) underlying websocket connection.

func TestTableLookupMissingUserOrDevice(t *testing.T) {
	table := NewTable()
	_, ok := table.Lookup(uuid.New(), uuid.New())
	assert.False(t, ok)
}

func TestTableUnregisterRemovesEntry(t *testing.T) {
	table := NewTable()
	userID, deviceID := uuid.New(), uuid.New()
	conn := &Conn{UserID: userID, DeviceID: deviceID, closed: true}
	table.conns[userID] = map[uuid.UUID]*Conn{deviceID: conn}

	table.Unregister(conn)

	_, ok := table.Lookup(userID, deviceID)
	assert.False(t, ok)
}

func TestTableUnregisterIsNoopForReplacedConnection(t *testing.T) {
	table := NewTable()
	userID, deviceID := uuid.New(), uuid.New()
	stale := &Conn{UserID: userID, DeviceID: deviceID, closed: true}
	current := &Conn{UserID: userID, DeviceID: deviceID, closed: true}
	table.conns[userID] = map[uuid.UUID]*Conn{deviceID: current}

	table.Unregister(stale)

	got, ok := table.Lookup(userID, deviceID)
	require.True(t, ok)
	assert.Same(t, current, got)
}

func TestTableUnregisterDropsEmptyUserEntry(t *testing.T) {
	table := NewTable()
	userID, deviceID := uuid.New(), uuid.New()
	conn := &Conn{UserID: userID, DeviceID: deviceID, closed: true}
	table.conns[userID] = map[uuid.UUID]*Conn{deviceID: conn}

	table.Unregister(conn)

	_, ok := table.conns[userID]
	assert.False(t, ok, "user entry should be removed once its last device disconnects")
}

func TestConnWriteTextReturnsErrorWhenClosed(t *testing.T) {
	conn := &Conn{closed: true}
	err := conn.WriteText([]byte("hi"))
	assert.Equal(t, errClosed, err)
}
