package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatmesh/internal/config"
)

func TestCloseIsNoopWithoutAConnection(t *testing.T) {
	m := NewManager(config.BrokerConfig{Host: "localhost", Port: 5672})
	assert.NoError(t, m.Close())
}
