// Package persistence implements the Persistence Worker (C2): it drains
// persistence-queue and writes every message to both the hot window and
// the durable store, acking only after both writes are attempted.
package persistence

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"chatmesh/internal/broker"
	"chatmesh/internal/config"
	"chatmesh/internal/database"
	"chatmesh/internal/hotwindow"
	"chatmesh/internal/models"
	"chatmesh/internal/workers"
)

// Worker consumes persistence-queue and commits each message to the store
// and hot window. Per spec's Open Question on duplicate persistence, a
// broker redelivery after an ack race (connection drop between the store
// write and the ack) produces a second row in the store; this is accepted
// rather than guarded against, since the store has no natural dedup key
// for a client-originated message beyond its own generated ID, and the
// socket protocol does not carry a client-assigned idempotency token.
type Worker struct {
	broker *broker.Manager
	cfg    config.BrokerConfig
	db     *database.DB
	window hotwindow.Window
	pools  *workers.PoolManager
}

func NewWorker(brokerMgr *broker.Manager, cfg config.BrokerConfig, db *database.DB, window hotwindow.Window, pools *workers.PoolManager) *Worker {
	return &Worker{broker: brokerMgr, cfg: cfg, db: db, window: window, pools: pools}
}

// Run blocks, consuming persistence-queue until the channel or connection
// dies; the caller is expected to retry Run on return.
func (w *Worker) Run() error {
	ch, err := w.broker.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := broker.DeclareDirectExchange(ch, w.cfg.PersistExchange); err != nil {
		return err
	}
	if err := broker.DeclareDurableQueue(ch, w.cfg.PersistExchange, w.cfg.PersistQueue, w.cfg.PersistRoutingKey); err != nil {
		return err
	}
	if err := ch.Qos(20, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(w.cfg.PersistQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for delivery := range deliveries {
		delivery := delivery
		w.pools.SubmitPersistence(func() {
			w.handle(delivery)
		})
	}
	return nil
}

func (w *Worker) handle(delivery amqp.Delivery) {
	var msg models.Message
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		slog.Error("persistence message decode failed, dropping", "error", err)
		delivery.Ack(false)
		return
	}

	ctx := context.Background()
	// The store row gets a freshly generated ID on every consumption, so a
	// redelivery writes a second row rather than conflicting with the first.
	stored := msg
	stored.ID = uuid.New()
	if _, err := w.db.CreateMessage(ctx, stored); err != nil {
		slog.Error("message store write failed", "error", err, "message_id", msg.ID)
		delivery.Nack(false, true)
		return
	}

	if err := w.window.Append(ctx, msg); err != nil {
		slog.Error("hot window append failed during persistence, store write already committed", "error", err, "message_id", msg.ID)
	}

	delivery.Ack(false)
}
