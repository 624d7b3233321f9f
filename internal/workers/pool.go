package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/alitto/pond"
)

// PoolManager owns the node's two bounded worker pools: one for fanning
// out local-socket deliveries on the Node Consumer, one for persistence
// writes on the Persistence Worker.
type PoolManager struct {
	DeliveryPool     *pond.WorkerPool
	PersistencePool  *pond.WorkerPool
}

type PoolConfig struct {
	ConsumerWorkers    int
	PersistenceWorkers int
}

func NewPoolManager(config PoolConfig) *PoolManager {
	return &PoolManager{
		DeliveryPool: pond.New(
			config.ConsumerWorkers,
			config.ConsumerWorkers*2,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
		PersistencePool: pond.New(
			config.PersistenceWorkers,
			config.PersistenceWorkers*2,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
	}
}

func (pm *PoolManager) SubmitDelivery(task func()) {
	pm.DeliveryPool.Submit(task)
}

func (pm *PoolManager) SubmitPersistence(task func()) {
	pm.PersistencePool.Submit(task)
}

func (pm *PoolManager) SubmitDeliveryWithTimeout(ctx context.Context, task func(), timeout time.Duration) error {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{}, 1)

	pm.DeliveryPool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("delivery task panicked", "error", r)
			}
			done <- struct{}{}
		}()
		task()
	})

	select {
	case <-done:
		return nil
	case <-taskCtx.Done():
		return taskCtx.Err()
	}
}

func (pm *PoolManager) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"delivery_pool": map[string]interface{}{
			"running_workers":  pm.DeliveryPool.RunningWorkers(),
			"idle_workers":     pm.DeliveryPool.IdleWorkers(),
			"submitted_tasks":  pm.DeliveryPool.SubmittedTasks(),
			"waiting_tasks":    pm.DeliveryPool.WaitingTasks(),
			"successful_tasks": pm.DeliveryPool.SuccessfulTasks(),
			"failed_tasks":     pm.DeliveryPool.FailedTasks(),
		},
		"persistence_pool": map[string]interface{}{
			"running_workers":  pm.PersistencePool.RunningWorkers(),
			"idle_workers":     pm.PersistencePool.IdleWorkers(),
			"submitted_tasks":  pm.PersistencePool.SubmittedTasks(),
			"waiting_tasks":    pm.PersistencePool.WaitingTasks(),
			"successful_tasks": pm.PersistencePool.SuccessfulTasks(),
			"failed_tasks":     pm.PersistencePool.FailedTasks(),
		},
	}
}

func (pm *PoolManager) Shutdown() {
	slog.Info("shutting down worker pools")

	pm.DeliveryPool.StopAndWait()
	slog.Info("delivery pool stopped")

	pm.PersistencePool.StopAndWait()
	slog.Info("persistence pool stopped")

	slog.Info("all worker pools shut down")
}
