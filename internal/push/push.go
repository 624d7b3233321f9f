// Package push implements the opaque push-notification sink the Node
// Publisher calls for recipients absent from every online node map. The
// wire contract is intentionally opaque (spec.md Non-goals exclude push
// payload format); this package only guarantees the event was emitted
// somewhere observable.
package push

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"chatmesh/internal/config"
	"chatmesh/internal/database"
	"chatmesh/internal/models"
)

// Notifier is the interface the Publisher depends on.
type Notifier interface {
	Notify(ctx context.Context, event models.PushEvent) error
}

// WebhookNotifier posts to an operator-configured webhook URL when one is
// set; otherwise it writes to the push_log table so the emitted event is
// at least observable in tests and local runs without a real push
// backend.
type WebhookNotifier struct {
	client     *resty.Client
	webhookURL string
	db         *database.DB
}

func NewWebhookNotifier(cfg config.PushConfig, db *database.DB) *WebhookNotifier {
	client := resty.New()
	client.SetTimeout(time.Duration(cfg.TimeoutMS) * time.Millisecond)
	client.SetHeader("Content-Type", "application/json")
	return &WebhookNotifier{client: client, webhookURL: cfg.WebhookURL, db: db}
}

func (n *WebhookNotifier) Notify(ctx context.Context, event models.PushEvent) error {
	if n.webhookURL == "" {
		return n.logToPushTable(ctx, event)
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(n.webhookURL)

	if err != nil || resp.IsError() {
		slog.Warn("push webhook delivery failed, recording to push_log instead",
			"error", err, "user_id", event.UserID, "device_id", event.DeviceID)
		return n.logToPushTable(ctx, event)
	}
	return nil
}

func (n *WebhookNotifier) logToPushTable(ctx context.Context, event models.PushEvent) error {
	_, err := n.db.ExecContext(ctx, `
		INSERT INTO push_log (user_id, device_id, message_id, preview, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, event.UserID, event.DeviceID, event.MessageID, event.Preview)
	return err
}
