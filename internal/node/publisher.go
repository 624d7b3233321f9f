// Package node implements the Node Publisher (C4) and Node Consumer (C3):
// the two halves of cross-node message distribution built on the shared
// broker.Manager connection.
package node

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"chatmesh/internal/broker"
	"chatmesh/internal/config"
	"chatmesh/internal/database"
	"chatmesh/internal/errors"
	"chatmesh/internal/hotwindow"
	"chatmesh/internal/models"
	"chatmesh/internal/presence"
	"chatmesh/internal/push"
)

// Publisher resolves a message's recipients, writes it to the hot window,
// and fans it out: locally- or remotely-owned recipients get a
// NodeMessage on their node's queue, recipients absent from every node
// map get a push event.
type Publisher struct {
	broker   *broker.Manager
	cfg      config.BrokerConfig
	registry presence.Registry
	window   hotwindow.Window
	db       *database.DB
	notifier push.Notifier
}

func NewPublisher(brokerMgr *broker.Manager, cfg config.BrokerConfig, registry presence.Registry, window hotwindow.Window, db *database.DB, notifier push.Notifier) *Publisher {
	return &Publisher{
		broker:   brokerMgr,
		cfg:      cfg,
		registry: registry,
		window:   window,
		db:       db,
		notifier: notifier,
	}
}

// Distribute implements socket.Distributor and the Publisher's four steps
// from spec.md §4.4:
//  1. determine the recipient set (every conversation member, including
//     the sender, so the sender's own other devices stay in sync)
//  2. resolve it to a node map via the Presence Registry, excluding only
//     the single (sender, originDeviceID) entry
//  3. publish one NodeMessage per node on chat-direct-exchange, routed by node_id
//  4. for any recipient user with no online device at all, emit a push event
func (p *Publisher) Distribute(ctx context.Context, msg models.Message, originDeviceID uuid.UUID) error {
	if err := p.window.Append(ctx, msg); err != nil {
		slog.Error("hot window append failed, store write remains authoritative", "error", err, "message_id", msg.ID)
	}

	recipients, err := p.recipientSet(ctx, msg)
	if err != nil {
		return err
	}

	sender := msg.SenderID
	nodeMap, err := p.registry.GetNodeMap(ctx, recipients, &sender, &originDeviceID)
	if err != nil {
		slog.Error("presence node map lookup failed, falling back to push for all recipients", "error", err)
		nodeMap = map[string][]models.DeviceRef{}
	}

	onlineUsers := make(map[uuid.UUID]bool)
	for nodeID, targets := range nodeMap {
		for _, d := range targets {
			onlineUsers[d.UserID] = true
		}
		if err := p.publishToNode(ctx, nodeID, msg, targets); err != nil {
			slog.Error("publish to node failed", "error", err, "node_id", nodeID)
		}
	}

	for _, userID := range recipients {
		if userID == msg.SenderID || onlineUsers[userID] {
			continue
		}
		if p.notifier == nil {
			continue
		}
		event := models.PushEvent{UserID: userID, MessageID: msg.ID, Preview: preview(msg.Content)}
		if err := p.notifier.Notify(ctx, event); err != nil {
			slog.Error("push notify failed", "error", err, "user_id", userID)
		}
	}

	return nil
}

func preview(content string) string {
	const maxLen = 120
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen]
}

func (p *Publisher) recipientSet(ctx context.Context, msg models.Message) ([]uuid.UUID, error) {
	members, err := p.db.GetMembers(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	recipients := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		recipients = append(recipients, m.UserID)
	}
	return recipients, nil
}

func (p *Publisher) publishToNode(ctx context.Context, nodeID string, msg models.Message, targets []models.DeviceRef) error {
	envelope := models.NodeMessage{
		EventType:     "message.new",
		Payload:       msg,
		TargetDevices: targets,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, errors.ErrInvalidDataType)
	}

	ch, err := p.broker.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := broker.DeclareDirectExchange(ch, p.cfg.ExchangeName); err != nil {
		return errors.Wrap(err, errors.ErrBrokerError)
	}
	queue := nodeID + "-queue"
	if err := broker.DeclareDurableQueue(ch, p.cfg.ExchangeName, queue, nodeID); err != nil {
		return errors.Wrap(err, errors.ErrBrokerError)
	}

	return p.broker.Publish(ctx, p.cfg.ExchangeName, nodeID, body)
}
