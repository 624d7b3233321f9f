package sync

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"chatmesh/internal/errors"
)

// Handler exposes the Reader over HTTP.
type Handler struct {
	reader *Reader
}

func NewHandler(reader *Reader) *Handler {
	return &Handler{reader: reader}
}

// RegisterRoutes wires GET /conversations/:id/messages and GET /sync.
func (h *Handler) RegisterRoutes(router fiber.Router) {
	router.Get("/conversations/:id/messages", h.getPage)
	router.Get("/sync", h.sync)
}

func (h *Handler) getPage(c *fiber.Ctx) error {
	conversationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errors.New(errors.ErrInvalidConversationID, "invalid conversation id")
	}

	page, err := intQuery(c, "page", 1)
	if err != nil {
		return err
	}
	size, err := intQuery(c, "size", maxPageSize)
	if err != nil {
		return err
	}

	messages, err := h.reader.GetPage(c.Context(), conversationID, page, size)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (h *Handler) sync(c *fiber.Ctx) error {
	userIDRaw := c.Query("user_id")
	if userIDRaw == "" {
		return errors.New(errors.ErrMissingRequiredField, "user_id is required")
	}
	userID, err := uuid.Parse(userIDRaw)
	if err != nil {
		return errors.New(errors.ErrBadRequest, "invalid user_id")
	}

	sinceRaw := c.Query("since")
	if sinceRaw == "" {
		return errors.New(errors.ErrMissingRequiredField, "since is required")
	}
	since, err := strconv.ParseFloat(sinceRaw, 64)
	if err != nil {
		return errors.New(errors.ErrBadRequest, "since must be a numeric epoch timestamp")
	}

	conversationIDs, err := parseConversationIDs(c.Query("conversations"))
	if err != nil {
		return err
	}

	synced, err := h.reader.Sync(c.Context(), userID, conversationIDs, since)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"synced": synced})
}

func parseConversationIDs(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, errors.New(errors.ErrBadRequest, "invalid conversation id in conversations list")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func intQuery(c *fiber.Ctx, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(errors.ErrBadRequest, name+" must be an integer")
	}
	return v, nil
}
