package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"chatmesh/internal/auth"
	"chatmesh/internal/database"
	"chatmesh/internal/errors"
	"chatmesh/internal/models"
)

// ConversationHandler handles conversation lifecycle requests: creating
// direct and group conversations, listing a user's conversations, and
// reading a single conversation's membership.
type ConversationHandler struct {
	db *database.DB
}

func NewConversationHandler(db *database.DB) *ConversationHandler {
	return &ConversationHandler{db: db}
}

// HandleListConversations returns every conversation the authenticated
// user belongs to.
func (h *ConversationHandler) HandleListConversations(c *fiber.Ctx) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return err
	}

	conversations, err := h.db.GetUserConversations(c.Context(), user.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

// HandleCreateConversation creates a direct conversation (exactly one
// other member) or a group/channel conversation (any number of members).
func (h *ConversationHandler) HandleCreateConversation(c *fiber.Ctx) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return err
	}

	var create models.ConversationCreate
	if err := c.BodyParser(&create); err != nil {
		slog.Debug("failed to parse create conversation request", "error", err)
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if len(create.Members) == 0 {
		return errors.New(errors.ErrMissingRequiredField, "members is required")
	}

	var conversation *models.Conversation
	switch create.Kind {
	case models.ConversationDirect:
		if len(create.Members) != 1 {
			return errors.New(errors.ErrValidationFailed, "a direct conversation needs exactly one other member")
		}
		conversation, err = h.db.CreateDirectConversation(c.Context(), user.ID, create.Members[0])
	case models.ConversationGroup, models.ConversationChannel:
		members := append([]uuid.UUID{user.ID}, create.Members...)
		conversation, err = h.db.CreateGroupConversation(c.Context(), create.Kind, create.Name, members)
	default:
		return errors.New(errors.ErrValidationFailed, "kind must be direct, group, or channel")
	}
	if err != nil {
		return err
	}

	slog.Info("conversation created", "conversation_id", conversation.ID, "kind", conversation.Kind, "creator", user.ID)
	return c.Status(fiber.StatusCreated).JSON(conversation)
}

// HandleGetConversation returns a conversation's metadata and membership,
// provided the caller belongs to it.
func (h *ConversationHandler) HandleGetConversation(c *fiber.Ctx) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return err
	}

	conversationID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.db.CheckMembership(c.Context(), conversationID, user.ID); err != nil {
		return err
	}

	conversation, err := h.db.GetConversation(c.Context(), conversationID)
	if err != nil {
		return err
	}
	members, err := h.db.GetMembers(c.Context(), conversationID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"conversation": conversation, "members": members})
}

// parseUUIDParam parses a UUID path parameter, mapping absence and
// malformed values to the appropriate error codes.
func parseUUIDParam(c *fiber.Ctx, paramName string) (uuid.UUID, error) {
	idStr := c.Params(paramName)
	if idStr == "" {
		return uuid.UUID{}, errors.New(errors.ErrMissingRequiredField, paramName+" is required")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.UUID{}, errors.New(errors.ErrInvalidConversationID, "invalid "+paramName+" format")
	}
	return id, nil
}
