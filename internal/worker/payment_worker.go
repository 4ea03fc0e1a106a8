package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/storefront-api/internal/model"
)

const idempotencyTTL = 24 * time.Hour

// NotificationApplier moves orders according to payment outcomes.
type NotificationApplier interface {
	ApplyNotification(ctx context.Context, n model.PaymentNotification) error
}

type consumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// PaymentWorker drains the payment notification queue. Each provider event
// is applied at most once; failures are dead-lettered.
type PaymentWorker struct {
	channel     consumeChannel
	queue       string
	applier     NotificationApplier
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewPaymentWorker(
	ch consumeChannel,
	queue string,
	applier NotificationApplier,
	redisClient *redis.Client,
	log *slog.Logger,
) *PaymentWorker {
	return &PaymentWorker{
		channel:     ch,
		queue:       queue,
		applier:     applier,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

func (w *PaymentWorker) Start(ctx context.Context) error {
	if err := w.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	msgs, err := w.channel.Consume(w.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("payment worker started", "queue", w.queue)
	return nil
}

func (w *PaymentWorker) Stop() { close(w.done) }

func (w *PaymentWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var n model.PaymentNotification
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		w.log.Error("unmarshal payment notification", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("provider", n.Provider, "event_id", n.EventID, "order_number", n.ExternalReference)

	key := idempotencyKey(n)
	exists, err := w.redisClient.Exists(ctx, key).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("payment notification already processed, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.applier.ApplyNotification(ctx, n); err != nil {
		log.Error("apply payment notification", "error", err)
		_ = msg.Nack(false, false) // dead-lettered
		return
	}

	if err := w.redisClient.Set(ctx, key, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("payment notification processed")
}

func idempotencyKey(n model.PaymentNotification) string {
	return "payment_processed:" + n.Provider + ":" + n.EventID
}
