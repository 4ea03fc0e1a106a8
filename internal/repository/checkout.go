package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

// CheckoutTx is the set of writes order placement performs inside one
// database transaction.
type CheckoutTx interface {
	// LockProducts returns the requested products keyed by id, holding a
	// row lock on each until the transaction ends. Unknown ids are absent.
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error)
	// DecrementStock returns ErrInsufficientStock when stock < quantity.
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error
	InsertOrder(ctx context.Context, order *model.Order) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type CheckoutStore interface {
	// WithinTx commits if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx CheckoutTx) error) error
}

type pgCheckoutStore struct{ pool *pgxpool.Pool }

func NewCheckoutStore(pool *pgxpool.Pool) CheckoutStore {
	return &pgCheckoutStore{pool: pool}
}

func (s *pgCheckoutStore) WithinTx(ctx context.Context, fn func(tx CheckoutTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgCheckoutTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgCheckoutTx struct{ tx pgx.Tx }

func (t *pgCheckoutTx) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	// Rows are locked in id order so concurrent checkouts over overlapping
	// product sets cannot deadlock.
	rows, err := t.tx.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[uuid.UUID]*model.Product, len(ids))
	for rows.Next() {
		p := &model.Product{}
		if err := scanProduct(rows, p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

func (t *pgCheckoutTx) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
	}
	return nil
}

func (t *pgCheckoutTx) InsertOrder(ctx context.Context, order *model.Order) error {
	order.ID = uuid.New()
	s := order.Shipping
	err := t.tx.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, user_id,
			shipping_name, shipping_email, shipping_phone, shipping_address, shipping_city, shipping_state, shipping_zip, shipping_country,
			subtotal, shipping_cost, tax, total, status, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		order.ID, order.OrderNumber, order.UserID,
		s.Name, s.Email, s.Phone, s.Address, s.City, s.State, s.Zip, s.Country,
		order.Subtotal, order.ShippingCost, order.Tax, order.Total, order.Status, order.Notes,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New()
		item.OrderID = order.ID
		item.CreatedAt = order.CreatedAt
		batch.Queue(
			`INSERT INTO order_items (id, order_id, product_id, product_name, product_sku, quantity, price, subtotal, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			item.ID, item.OrderID, item.ProductID, item.ProductName, item.ProductSKU,
			item.Quantity, item.Price, item.Subtotal, item.CreatedAt,
		)
	}
	br := t.tx.SendBatch(ctx, batch)
	for range order.Items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (t *pgCheckoutTx) ClearCart(ctx context.Context, userID uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
