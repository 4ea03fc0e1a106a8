package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

// PaymentEventRepository keeps an audit trail of processed payment
// notifications, including the ones that could not be applied.
type PaymentEventRepository interface {
	Record(ctx context.Context, event *model.PaymentEvent) error
	ListByReference(ctx context.Context, externalReference string) ([]model.PaymentEvent, error)
}

type pgPaymentEventRepo struct{ pool *pgxpool.Pool }

func NewPaymentEventRepository(pool *pgxpool.Pool) PaymentEventRepository {
	return &pgPaymentEventRepo{pool: pool}
}

func (r *pgPaymentEventRepo) Record(ctx context.Context, event *model.PaymentEvent) error {
	event.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payment_events (id, provider, event_id, external_reference, payment_id, status, outcome, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING created_at`,
		event.ID, event.Provider, event.EventID, event.ExternalReference, event.PaymentID,
		event.Status, event.Outcome, event.Error,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("record payment event: %w", err)
	}
	return nil
}

func (r *pgPaymentEventRepo) ListByReference(ctx context.Context, externalReference string) ([]model.PaymentEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, provider, event_id, external_reference, payment_id, status, outcome, error, created_at
		 FROM payment_events WHERE external_reference = $1 ORDER BY created_at`, externalReference,
	)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	var events []model.PaymentEvent
	for rows.Next() {
		var e model.PaymentEvent
		if err := rows.Scan(&e.ID, &e.Provider, &e.EventID, &e.ExternalReference, &e.PaymentID,
			&e.Status, &e.Outcome, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
