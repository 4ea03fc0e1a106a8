package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// EventPublisher delivers messages to the broker. Implementations must be
// safe for concurrent use.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, msg model.OrderPlacedMessage) error
	PublishPaymentNotification(ctx context.Context, n model.PaymentNotification) error
}

// LineItem is one requested order line. ClientPrice is what the caller
// believes the unit price is; it is only used when pricing is configured
// to trust it.
type LineItem struct {
	ProductID   uuid.UUID
	Quantity    int
	ClientPrice decimal.Decimal
}

type OrderService struct {
	orderRepo   repository.OrderRepository
	store       repository.CheckoutStore
	pricing     Pricing
	publisher   EventPublisher
	log         *slog.Logger
	now         func() time.Time
	orderNumber func(time.Time) (string, error)
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	store repository.CheckoutStore,
	pricing Pricing,
	publisher EventPublisher,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		store:       store,
		pricing:     pricing,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
		orderNumber: NewOrderNumber,
	}
}

// PlaceOrder validates the lines against the locked catalog rows, computes
// the totals, persists the order with its items, decrements stock and
// clears the user's cart in a single transaction. Any error leaves the
// database untouched.
func (s *OrderService) PlaceOrder(
	ctx context.Context,
	userID uuid.UUID,
	shipping model.ShippingAddress,
	items []LineItem,
	notes string,
) (*model.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	log := s.log.With("user_id", userID)

	var order *model.Order
	err := s.store.WithinTx(ctx, func(tx repository.CheckoutTx) error {
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}

		lines, subtotal, err := s.buildLines(log, products, items)
		if err != nil {
			return err
		}

		now := s.now()
		number, err := s.orderNumber(now)
		if err != nil {
			return fmt.Errorf("generate order number: %w", err)
		}

		shippingCost := s.pricing.Shipping.ShippingCost(subtotal, shipping)
		tax := s.pricing.Tax.Tax(subtotal, shipping)
		o := &model.Order{
			OrderNumber:  number,
			UserID:       userID,
			Shipping:     shipping,
			Subtotal:     subtotal,
			ShippingCost: shippingCost,
			Tax:          tax,
			Total:        subtotal.Add(shippingCost).Add(tax),
			Status:       model.OrderStatusPending,
			Notes:        notes,
			Items:        lines,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		for _, line := range lines {
			if err := tx.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return &InsufficientStockError{
						ProductID: line.ProductID,
						Available: products[line.ProductID].Stock,
						Requested: line.Quantity,
					}
				}
				return err
			}
		}

		if err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrInsufficientStock) {
			log.Info("order rejected", "reason", err.Error())
			return nil, err
		}
		return nil, fmt.Errorf("place order: %w", err)
	}

	log.Info("order placed",
		"order_id", order.ID, "order_number", order.OrderNumber,
		"items", len(order.Items), "total", order.Total.StringFixed(currencyPlaces),
	)
	s.publishPlaced(ctx, order)
	return order, nil
}

// buildLines resolves each requested line in input order. Repeated lines
// for one product draw on the same remaining stock.
func (s *OrderService) buildLines(
	log *slog.Logger,
	products map[uuid.UUID]*model.Product,
	items []LineItem,
) ([]model.OrderItem, decimal.Decimal, error) {
	remaining := make(map[uuid.UUID]int, len(products))
	lines := make([]model.OrderItem, 0, len(items))
	subtotal := decimal.Zero

	for i, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, decimal.Zero, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if !product.IsActive {
			return nil, decimal.Zero, &ValidationError{
				Field:  fmt.Sprintf("items[%d].productId", i),
				Reason: fmt.Sprintf("product %s is not available for sale", product.ID),
			}
		}

		available, counted := remaining[product.ID]
		if !counted {
			available = product.Stock
		}
		if available < item.Quantity {
			return nil, decimal.Zero, &InsufficientStockError{
				ProductID: product.ID, Available: available, Requested: item.Quantity,
			}
		}
		remaining[product.ID] = available - item.Quantity

		price, err := s.unitPrice(log, i, product, item)
		if err != nil {
			return nil, decimal.Zero, err
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		lines = append(lines, model.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			Quantity:    item.Quantity,
			Price:       price,
			Subtotal:    lineTotal,
		})
	}
	return lines, subtotal, nil
}

func (s *OrderService) unitPrice(log *slog.Logger, idx int, product *model.Product, item LineItem) (decimal.Decimal, error) {
	if !item.ClientPrice.IsZero() && !item.ClientPrice.Equal(product.Price) {
		log.Warn("client price differs from catalog price",
			"product_id", product.ID,
			"client_price", item.ClientPrice.String(),
			"catalog_price", product.Price.String(),
			"price_source", s.pricing.Source,
		)
	}
	if s.pricing.Source != config.PriceSourceClient {
		return product.Price.Round(currencyPlaces), nil
	}
	if item.ClientPrice.IsNegative() {
		return decimal.Zero, &ValidationError{Field: fmt.Sprintf("items[%d].price", idx), Reason: "must not be negative"}
	}
	return item.ClientPrice.Round(currencyPlaces), nil
}

func (s *OrderService) publishPlaced(ctx context.Context, order *model.Order) {
	if s.publisher == nil {
		return
	}
	msg := model.OrderPlacedMessage{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		PlacedAt:    order.CreatedAt,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, msg); err != nil {
		s.log.Error("publish order placed", "order_id", order.ID, "error", err)
	}
}

// GetOrder returns the order if the requester owns it or is an admin.
func (s *OrderService) GetOrder(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != requesterID && !isAdmin {
		return nil, ErrForbidden
	}
	return order, nil
}

// ListOrdersForUser returns the user's orders newest first.
func (s *OrderService) ListOrdersForUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) UpdateOrder(ctx context.Context, orderID uuid.UUID, upd model.OrderUpdate, isAdmin bool) (*model.Order, error) {
	if !isAdmin {
		return nil, ErrForbidden
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *upd.Status)}
	}

	order, err := s.orderRepo.Update(ctx, orderID, func(o *model.Order) error {
		return model.ApplyOrderUpdate(o, upd, s.now())
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidStatusTransition) {
			return nil, &ValidationError{Field: "status", Reason: err.Error()}
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	s.log.Info("order updated", "order_id", order.ID, "status", order.Status)
	return order, nil
}
