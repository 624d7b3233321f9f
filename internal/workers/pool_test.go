package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolManagerSubmitDeliveryRunsTask(t *testing.T) {
	pm := NewPoolManager(PoolConfig{ConsumerWorkers: 2, PersistenceWorkers: 2})
	defer pm.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	pm.SubmitDelivery(func() {
		ran = true
		wg.Done()
	})
	wg.Wait()

	assert.True(t, ran)
}

func TestPoolManagerSubmitPersistenceRunsTask(t *testing.T) {
	pm := NewPoolManager(PoolConfig{ConsumerWorkers: 2, PersistenceWorkers: 2})
	defer pm.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	pm.SubmitPersistence(func() {
		ran = true
		wg.Done()
	})
	wg.Wait()

	assert.True(t, ran)
}

func TestSubmitDeliveryWithTimeoutReturnsErrorOnSlowTask(t *testing.T) {
	pm := NewPoolManager(PoolConfig{ConsumerWorkers: 1, PersistenceWorkers: 1})
	defer pm.Shutdown()

	err := pm.SubmitDeliveryWithTimeout(context.Background(), func() {
		time.Sleep(200 * time.Millisecond)
	}, 10*time.Millisecond)

	require.Error(t, err)
}

func TestGetStatsReportsBothPools(t *testing.T) {
	pm := NewPoolManager(PoolConfig{ConsumerWorkers: 1, PersistenceWorkers: 1})
	defer pm.Shutdown()

	stats := pm.GetStats()
	assert.Contains(t, stats, "delivery_pool")
	assert.Contains(t, stats, "persistence_pool")
}
