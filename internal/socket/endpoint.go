package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"chatmesh/internal/auth"
	"chatmesh/internal/broker"
	"chatmesh/internal/config"
	"chatmesh/internal/errors"
	"chatmesh/internal/models"
	"chatmesh/internal/validation"
)

// Distributor is the Node Publisher's contract as seen from the Socket
// Endpoint: hand off a freshly-received message for node-map resolution
// and cross-node delivery. Defined here (not imported from internal/node)
// to avoid a socket<->node import cycle, since the Node Consumer also
// depends on this package's Table.
type Distributor interface {
	Distribute(ctx context.Context, msg models.Message, originDeviceID uuid.UUID) error
}

// InboundFrame is the wire shape of a client-sent chat message, before
// the server stamps sender_id, type, sent_at, and origin_device_id.
type InboundFrame struct {
	ConversationID string  `json:"conversation_id"`
	Content        string  `json:"content"`
	Type           string  `json:"type,omitempty"`
	SentAt         float64 `json:"sent_at,omitempty"`
}

// Endpoint serves /ws/:user_id/:device_id. Per spec, a malformed frame
// gets a literal text error reply and the socket stays open; a successful
// frame is persistence-enqueued then publisher-distributed, in that
// order, so delivery may race ahead of durable storage on the wire by
// design.
type Endpoint struct {
	table       *Table
	broker      *broker.Manager
	brokerCfg   config.BrokerConfig
	distributor Distributor
	authService *auth.AuthService
}

func NewEndpoint(table *Table, brokerMgr *broker.Manager, brokerCfg config.BrokerConfig, distributor Distributor, authService *auth.AuthService) *Endpoint {
	return &Endpoint{
		table:       table,
		broker:      brokerMgr,
		brokerCfg:   brokerCfg,
		distributor: distributor,
		authService: authService,
	}
}

// RegisterRoutes wires the upgrade handshake and the websocket.New
// handler on the given Fiber router.
func (e *Endpoint) RegisterRoutes(router fiber.Router) {
	router.Use("/ws/:user_id/:device_id", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		userID, err := uuid.Parse(c.Params("user_id"))
		if err != nil {
			return errors.New(errors.ErrBadRequest, "invalid user_id")
		}
		deviceID, err := uuid.Parse(c.Params("device_id"))
		if err != nil {
			return errors.New(errors.ErrBadRequest, "invalid device_id")
		}

		token, err := auth.ExtractBearerToken(c.Get("Authorization"))
		if err != nil {
			return errors.New(errors.ErrUnauthorized, "missing session token")
		}
		user, err := e.authService.ValidateSession(token)
		if err != nil {
			return errors.New(errors.ErrUnauthorized, "invalid session")
		}
		if user.ID != userID {
			return errors.New(errors.ErrForbidden, "session does not match requested user_id")
		}

		c.Locals("userID", userID)
		c.Locals("deviceID", deviceID)
		return c.Next()
	}, websocket.New(e.serve))
}

// serve implements the REGISTERED → SERVING → CLOSING state machine for
// one device connection: the connection is added to the node-local Table
// on entry and removed (and closed) on exit. serve does not call the
// Presence Registry; a device's presence record changes only through the
// /presence HTTP routes and the StalenessSweeper.
func (e *Endpoint) serve(ws *websocket.Conn) {
	userID := ws.Locals("userID").(uuid.UUID)
	deviceID := ws.Locals("deviceID").(uuid.UUID)

	conn := e.table.Register(userID, deviceID, ws)
	defer e.table.Unregister(conn)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			conn.WriteText([]byte("Invalid JSON format."))
			continue
		}
		if frame.ConversationID == "" {
			conn.WriteText([]byte("Missing conversation_id."))
			continue
		}
		conversationID, err := uuid.Parse(frame.ConversationID)
		if err != nil {
			conn.WriteText([]byte("Invalid JSON format."))
			continue
		}

		content := validation.SanitizeString(frame.Content)
		if err := validation.ValidateMessageContent(content); err != nil {
			conn.WriteText([]byte("Invalid message content."))
			continue
		}

		msgType := frame.Type
		if msgType == "" {
			msgType = "text"
		}
		sentAt := frame.SentAt
		if sentAt == 0 {
			sentAt = float64(time.Now().UnixNano()) / float64(time.Second)
		}

		msg := models.Message{
			ID:             uuid.New(),
			ConversationID: conversationID,
			SenderID:       userID,
			Content:        content,
			Type:           msgType,
			SentAt:         sentAt,
		}

		ctx := context.Background()
		if err := e.enqueuePersistence(ctx, msg); err != nil {
			slog.Error("persistence enqueue failed", "error", err, "message_id", msg.ID)
		}
		if err := e.distributor.Distribute(ctx, msg, deviceID); err != nil {
			slog.Error("message distribution failed", "error", err, "message_id", msg.ID)
		}
	}
}

func (e *Endpoint) enqueuePersistence(ctx context.Context, msg models.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrInvalidDataType)
	}
	return e.broker.Publish(ctx, e.brokerCfg.PersistExchange, e.brokerCfg.PersistRoutingKey, body)
}
