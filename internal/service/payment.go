package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
	ErrInvalidWebhook      = errors.New("invalid webhook")
	ErrOrderNotPayable     = errors.New("order is not awaiting payment")
)

// PaymentGateway is one payment processor integration.
type PaymentGateway interface {
	Provider() string
	CreatePayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentIntent, error)
	// ParseWebhook authenticates a callback and converts it. A nil
	// notification with a nil error means the callback is not relevant.
	// A *model.FetchError means the callback was authentic but its
	// payment could not be looked up.
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*model.PaymentNotification, error)
}

type PaymentService struct {
	orders    *OrderService
	orderRepo repository.OrderRepository
	eventRepo repository.PaymentEventRepository
	gateways  map[string]PaymentGateway
	publisher EventPublisher
	currency  string
	log       *slog.Logger
	now       func() time.Time
}

func NewPaymentService(
	orders *OrderService,
	orderRepo repository.OrderRepository,
	eventRepo repository.PaymentEventRepository,
	gateways []PaymentGateway,
	publisher EventPublisher,
	currency string,
	log *slog.Logger,
) *PaymentService {
	byName := make(map[string]PaymentGateway, len(gateways))
	for _, gw := range gateways {
		byName[gw.Provider()] = gw
	}
	return &PaymentService{
		orders:    orders,
		orderRepo: orderRepo,
		eventRepo: eventRepo,
		gateways:  byName,
		publisher: publisher,
		currency:  currency,
		log:       log,
		now:       time.Now,
	}
}

// CreateIntent asks provider to collect the order's total. The amount
// always comes from the stored order.
func (s *PaymentService) CreateIntent(
	ctx context.Context,
	orderID, requesterID uuid.UUID,
	isAdmin bool,
	provider string,
) (*model.PaymentIntent, error) {
	gw, ok := s.gateways[provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	order, err := s.orders.GetOrder(ctx, orderID, requesterID, isAdmin)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, ErrOrderNotPayable
	}

	intent, err := gw.CreatePayment(ctx, model.PaymentRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Amount:      order.Total,
		Currency:    s.currency,
		Email:       order.Shipping.Email,
	})
	if err != nil {
		s.log.Error("create payment", "provider", provider, "order_id", order.ID, "error", err)
		return nil, &PaymentProcessorError{Provider: provider, Err: err}
	}

	_, err = s.orderRepo.Update(ctx, order.ID, func(o *model.Order) error {
		return model.ApplyOrderUpdate(o, model.OrderUpdate{
			PaymentMethod: &provider,
			PaymentID:     &intent.ExternalID,
		}, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("link payment: %w", err)
	}

	s.log.Info("payment intent created",
		"provider", provider, "order_id", order.ID, "payment_id", intent.ExternalID,
	)
	return intent, nil
}

// HandleWebhook authenticates a provider callback and hands it off for
// processing. Only unknown providers and unauthenticated payloads are
// reported; processing failures are logged and recorded so the provider
// still gets an acknowledgement.
func (s *PaymentService) HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) error {
	gw, ok := s.gateways[provider]
	if !ok {
		return ErrUnsupportedProvider
	}
	n, err := gw.ParseWebhook(ctx, payload, header)
	var fetchErr *model.FetchError
	if errors.As(err, &fetchErr) {
		s.log.Error("fetch webhook payment", "provider", provider, "payment_id", fetchErr.PaymentID, "error", err)
		s.recordEvent(ctx, &model.PaymentEvent{
			Provider:  provider,
			EventID:   fetchErr.PaymentID,
			PaymentID: fetchErr.PaymentID,
			Status:    model.PaymentPending,
			Outcome:   model.PaymentEventFailed,
			Error:     err.Error(),
		})
		return nil
	}
	if err != nil {
		s.log.Warn("reject webhook", "provider", provider, "error", err)
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if n == nil {
		return nil
	}
	n.Provider = provider
	n.ReceivedAt = s.now()

	log := s.log.With("provider", provider, "event_id", n.EventID, "order_number", n.ExternalReference)
	log.Info("webhook received", "status", n.Status)

	if s.publisher != nil {
		err := s.publisher.PublishPaymentNotification(ctx, *n)
		if err == nil {
			return nil
		}
		log.Error("enqueue payment notification, applying inline", "error", err)
	}
	if err := s.ApplyNotification(ctx, *n); err != nil {
		log.Error("apply payment notification", "error", err)
	}
	return nil
}

// ApplyNotification moves the referenced order according to the payment
// outcome and records the notification with its result.
func (s *PaymentService) ApplyNotification(ctx context.Context, n model.PaymentNotification) error {
	event := &model.PaymentEvent{
		Provider:          n.Provider,
		EventID:           n.EventID,
		ExternalReference: n.ExternalReference,
		PaymentID:         n.PaymentID,
		Status:            n.Status,
	}

	outcome, err := s.applyNotification(ctx, n)
	event.Outcome = outcome
	if err != nil {
		event.Outcome = model.PaymentEventFailed
		event.Error = err.Error()
	}
	s.recordEvent(ctx, event)
	return err
}

func (s *PaymentService) recordEvent(ctx context.Context, event *model.PaymentEvent) {
	if err := s.eventRepo.Record(ctx, event); err != nil {
		s.log.Error("record payment event", "event_id", event.EventID, "error", err)
	}
}

func (s *PaymentService) applyNotification(ctx context.Context, n model.PaymentNotification) (string, error) {
	var target model.OrderStatus
	switch n.Status {
	case model.PaymentSucceeded:
		target = model.OrderStatusPaid
	case model.PaymentRefunded:
		target = model.OrderStatusRefunded
	default:
		return model.PaymentEventIgnored, nil
	}

	order, err := s.orderRepo.GetByNumber(ctx, n.ExternalReference)
	if err != nil {
		return "", fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return "", fmt.Errorf("%w: %s", ErrOrderNotFound, n.ExternalReference)
	}

	outcome := model.PaymentEventApplied
	_, err = s.orderRepo.Update(ctx, order.ID, func(o *model.Order) error {
		// A late success for an order that already moved past paid, or a
		// refund for an order that is already closed, changes nothing.
		late := target == model.OrderStatusPaid && o.Status != model.OrderStatusPending && o.Status != model.OrderStatusPaid
		if late || !o.Status.CanTransitionTo(target) {
			outcome = model.PaymentEventIgnored
			return nil
		}
		upd := model.OrderUpdate{Status: &target}
		if n.PaymentID != "" {
			upd.PaymentID = &n.PaymentID
		}
		if n.Provider != "" {
			upd.PaymentMethod = &n.Provider
		}
		return model.ApplyOrderUpdate(o, upd, s.now())
	})
	if err != nil {
		return "", fmt.Errorf("update order: %w", err)
	}

	s.log.Info("payment notification applied",
		"order_id", order.ID, "status", n.Status, "outcome", outcome,
	)
	return outcome, nil
}

// PaymentEvents lists recorded notifications for an order. Admin only.
func (s *PaymentService) PaymentEvents(ctx context.Context, orderID uuid.UUID, isAdmin bool) ([]model.PaymentEvent, error) {
	if !isAdmin {
		return nil, ErrForbidden
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.eventRepo.ListByReference(ctx, order.OrderNumber)
}
