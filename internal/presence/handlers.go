package presence

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"chatmesh/internal/errors"
)

// Handler exposes the registry's operations over HTTP so out-of-process
// callers (and tests) can exercise the same Store the Publisher uses
// in-process.
type Handler struct {
	registry Registry
}

func NewHandler(registry Registry) *Handler {
	return &Handler{registry: registry}
}

type presenceRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	DeviceID uuid.UUID `json:"device_id"`
	NodeID   string    `json:"node_id"`
}

// RegisterRoutes wires POST /presence/online|offline|heartbeat,
// GET /presence/:user_id, and GET /presence/nodes.
func (h *Handler) RegisterRoutes(router fiber.Router) {
	router.Post("/presence/online", h.online)
	router.Post("/presence/offline", h.offline)
	router.Post("/presence/heartbeat", h.heartbeat)
	router.Get("/presence/nodes", h.getNodeMap)
	router.Get("/presence/:user_id", h.getUser)
}

func (h *Handler) online(c *fiber.Ctx) error {
	var req presenceRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := h.registry.MarkOnline(c.Context(), req.UserID, req.DeviceID, req.NodeID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) offline(c *fiber.Ctx) error {
	var req presenceRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := h.registry.MarkOffline(c.Context(), req.UserID, req.DeviceID, req.NodeID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) heartbeat(c *fiber.Ctx) error {
	var req presenceRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := h.registry.Heartbeat(c.Context(), req.UserID, req.DeviceID, req.NodeID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) getUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return errors.New(errors.ErrBadRequest, "invalid user_id")
	}
	records, err := h.registry.GetUser(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(records)
}

func (h *Handler) getNodeMap(c *fiber.Ctx) error {
	ids := c.Context().QueryArgs().PeekMulti("user_id")
	userIDs := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(string(raw))
		if err != nil {
			return errors.New(errors.ErrBadRequest, "invalid user_id")
		}
		userIDs = append(userIDs, id)
	}

	var sender, origin *uuid.UUID
	if raw := c.Query("sender_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errors.New(errors.ErrBadRequest, "invalid sender_id")
		}
		sender = &id
	}
	if raw := c.Query("origin_device_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errors.New(errors.ErrBadRequest, "invalid origin_device_id")
		}
		origin = &id
	}

	nodeMap, err := h.registry.GetNodeMap(c.Context(), userIDs, sender, origin)
	if err != nil {
		slog.Error("presence node map lookup failed", "error", err)
		return err
	}
	return c.JSON(nodeMap)
}
