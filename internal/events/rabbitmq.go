package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/model"
)

const (
	RoutingKeyOrderPlaced         = "order.placed"
	RoutingKeyPaymentNotification = "payment.notification"
)

// Channel is the subset of *amqp.Channel used for declaring topology.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Setup declares the events exchange, the payment notification queue and
// its dead-letter pair.
func Setup(ch Channel, cfg config.RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(cfg.EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare events exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.DeadLetterExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(cfg.DeadLetterQueue, cfg.PaymentQueue, cfg.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.PaymentQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    cfg.DeadLetterExchange,
		"x-dead-letter-routing-key": cfg.PaymentQueue,
	}); err != nil {
		return fmt.Errorf("declare payment queue: %w", err)
	}
	if err := ch.QueueBind(cfg.PaymentQueue, RoutingKeyPaymentNotification, cfg.EventsExchange, false, nil); err != nil {
		return fmt.Errorf("bind payment queue: %w", err)
	}
	return nil
}

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends domain events to the events exchange as persistent JSON
// messages.
type Publisher struct {
	mu       sync.Mutex
	ch       publishChannel
	exchange string
	now      func() time.Time
}

func NewPublisher(ch publishChannel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, msg model.OrderPlacedMessage) error {
	return p.publish(ctx, RoutingKeyOrderPlaced, msg.OrderID.String(), msg)
}

func (p *Publisher) PublishPaymentNotification(ctx context.Context, n model.PaymentNotification) error {
	return p.publish(ctx, RoutingKeyPaymentNotification, n.Provider+":"+n.EventID, n)
}

func (p *Publisher) publish(ctx context.Context, key, messageID string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    p.now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}
