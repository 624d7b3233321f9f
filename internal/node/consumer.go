package node

import (
	"encoding/json"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatmesh/internal/broker"
	"chatmesh/internal/config"
	"chatmesh/internal/models"
	"chatmesh/internal/socket"
	"chatmesh/internal/workers"
)

// Consumer is the Node Consumer (C3): it drains this node's queue on
// chat-direct-exchange and delivers each NodeMessage's targets to local
// sockets, acking after every delivery has been attempted regardless of
// individual send failures.
type Consumer struct {
	broker *broker.Manager
	cfg    config.BrokerConfig
	nodeID string
	table  *socket.Table
	pools  *workers.PoolManager
}

func NewConsumer(brokerMgr *broker.Manager, cfg config.BrokerConfig, nodeID string, table *socket.Table, pools *workers.PoolManager) *Consumer {
	return &Consumer{broker: brokerMgr, cfg: cfg, nodeID: nodeID, table: table, pools: pools}
}

// Run blocks, consuming this node's queue until the channel or
// connection dies, at which point the caller is expected to retry Run —
// the broker.Manager itself handles reconnect backoff on the next Channel() call.
func (c *Consumer) Run() error {
	ch, err := c.broker.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := broker.DeclareDirectExchange(ch, c.cfg.ExchangeName); err != nil {
		return err
	}
	queue := c.nodeID + "-queue"
	if err := broker.DeclareDurableQueue(ch, c.cfg.ExchangeName, queue, c.nodeID); err != nil {
		return err
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for delivery := range deliveries {
		c.handle(delivery)
	}
	return nil
}

func (c *Consumer) handle(delivery amqp.Delivery) {
	var envelope models.NodeMessage
	if err := json.Unmarshal(delivery.Body, &envelope); err != nil {
		slog.Error("node message decode failed, dropping", "error", err)
		delivery.Ack(false)
		return
	}

	var wg sync.WaitGroup
	for _, target := range envelope.TargetDevices {
		target := target
		wg.Add(1)
		c.pools.SubmitDelivery(func() {
			defer wg.Done()
			c.deliverLocal(target, envelope.Payload)
		})
	}
	wg.Wait()

	delivery.Ack(false)
}

func (c *Consumer) deliverLocal(target models.DeviceRef, msg models.Message) {
	conn, ok := c.table.Lookup(target.UserID, target.DeviceID)
	if !ok {
		return
	}
	body, err := json.Marshal(msg)
	if err != nil {
		slog.Error("local delivery encode failed", "error", err, "message_id", msg.ID)
		return
	}
	if err := conn.WriteText(body); err != nil {
		// Connection closed between lookup and write; treated as absent.
		return
	}
}
