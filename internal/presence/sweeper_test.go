package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStalenessSweeperHalvesTTLForInterval(t *testing.T) {
	s := NewStalenessSweeper(nil, 10*time.Second)
	assert.Equal(t, 5*time.Second, s.interval)
}

func TestNewStalenessSweeperFloorsIntervalAtOneSecond(t *testing.T) {
	s := NewStalenessSweeper(nil, 500*time.Millisecond)
	assert.Equal(t, time.Second, s.interval)
}

func TestStopClosesStopChannel(t *testing.T) {
	s := NewStalenessSweeper(nil, 10*time.Second)
	done := make(chan struct{})
	go func() {
		<-s.stop
		close(done)
	}()
	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not close the stop channel")
	}
}
