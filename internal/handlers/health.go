package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"chatmesh/internal/broker"
	"chatmesh/internal/config"
	"chatmesh/internal/database"
	"chatmesh/internal/workers"
)

// HealthHandler reports this node's operational status: database
// reachability, broker channel availability, and worker pool load.
type HealthHandler struct {
	config      *config.Config
	db          *database.DB
	brokerMgr   *broker.Manager
	poolManager *workers.PoolManager
}

func NewHealthHandler(cfg *config.Config, db *database.DB, brokerMgr *broker.Manager, poolManager *workers.PoolManager) *HealthHandler {
	return &HealthHandler{
		config:      cfg,
		db:          db,
		brokerMgr:   brokerMgr,
		poolManager: poolManager,
	}
}

func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	stats := h.poolManager.GetStats()

	dbStatus := "healthy"
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	brokerStatus := "healthy"
	if ch, err := h.brokerMgr.Channel(); err != nil {
		brokerStatus = "unhealthy"
	} else {
		ch.Close()
	}

	return c.JSON(fiber.Map{
		"status":       "ok",
		"message":      "chatmesh node is running",
		"timestamp":    time.Now(),
		"node_id":      h.config.Node.ID,
		"environment":  h.config.Server.Environment,
		"worker_stats": stats,
		"database":     dbStatus,
		"broker":       brokerStatus,
	})
}
