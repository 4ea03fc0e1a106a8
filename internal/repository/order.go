package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	// Update loads the order under a row lock, lets fn mutate it and writes
	// the mutable fields back. A missing order yields (nil, nil).
	Update(ctx context.Context, id uuid.UUID, fn func(order *model.Order) error) (*model.Order, error)
}

const orderColumns = `id, order_number, user_id,
	shipping_name, shipping_email, shipping_phone, shipping_address, shipping_city, shipping_state, shipping_zip, shipping_country,
	subtotal, shipping_cost, tax, total, status, payment_method, payment_id, paid_at, notes, created_at, updated_at`

const orderItemColumns = `id, order_id, product_id, product_name, product_sku, quantity, price, subtotal, created_at`

// querier is the subset of pgxpool.Pool and pgx.Tx used by the readers.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func scanOrder(row rowScanner, o *model.Order) error {
	s := &o.Shipping
	return row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID,
		&s.Name, &s.Email, &s.Phone, &s.Address, &s.City, &s.State, &s.Zip, &s.Country,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total, &o.Status, &o.PaymentMethod, &o.PaymentID,
		&o.PaidAt, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
}

func scanOrderItem(row rowScanner, item *model.OrderItem) error {
	return row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductSKU,
		&item.Quantity, &item.Price, &item.Subtotal, &item.CreatedAt,
	)
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *pgOrderRepo) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
}

func getOrder(ctx context.Context, q querier, query string, arg any) (*model.Order, error) {
	order := &model.Order{}
	if err := scanOrder(q.QueryRow(ctx, query, arg), order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := loadOrderItems(ctx, q, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func loadOrderItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY created_at, id`, orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var item model.OrderItem
		if err := scanOrderItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, rows.Err()
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := loadOrderItems(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *pgOrderRepo) Update(ctx context.Context, id uuid.UUID, fn func(order *model.Order) error) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := getOrder(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil || order == nil {
		return nil, err
	}
	if err := fn(order); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx,
		`UPDATE orders SET status = $2, payment_method = $3, payment_id = $4, paid_at = $5, notes = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		order.ID, order.Status, order.PaymentMethod, order.PaymentID, order.PaidAt, order.Notes,
	).Scan(&order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}
