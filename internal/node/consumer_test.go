package node

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"chatmesh/internal/models"
	"chatmesh/internal/socket"
)

// deliverLocal is exercised directly against a real socket.Table rather
// than a fake: Table's Lookup and Conn's closed-state check are both
// reachable without a live websocket connection.

func TestDeliverLocalIsNoopWhenTargetNotRegistered(t *testing.T) {
	c := &Consumer{table: socket.NewTable()}

	// Must not panic when the target device has no connection on this node.
	assert.NotPanics(t, func() {
		c.deliverLocal(models.DeviceRef{UserID: uuid.New(), DeviceID: uuid.New()}, models.Message{ID: uuid.New()})
	})
}

func TestDeliverLocalIsNoopWhenUserKnownButDeviceIsNot(t *testing.T) {
	table := socket.NewTable()
	c := &Consumer{table: table}

	// The user has one registered device and the target names a different
	// device of the same user, so the outer (by user) lookup hits and the
	// inner (by device) lookup misses; deliverLocal must return without
	// touching the registered connection's nil websocket.
	userID := uuid.New()
	table.Register(userID, uuid.New(), nil)
	assert.NotPanics(t, func() {
		c.deliverLocal(models.DeviceRef{UserID: userID, DeviceID: uuid.New()}, models.Message{ID: uuid.New()})
	})
}
