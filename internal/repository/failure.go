package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openkiosk/storefront/internal/domain/payment"
)

const recordFailureSQL = `INSERT INTO payment_failures (provider_order_id, user_id, detail)
	VALUES ($1, $2, $3)`

var _ payment.FailureRecorder = (*FailureRepository)(nil)

// FailureRepository stores payment failure audit records in PostgreSQL.
type FailureRepository struct {
	pool *pgxpool.Pool
}

// NewFailureRepository returns a FailureRepository that uses the given pool.
func NewFailureRepository(pool *pgxpool.Pool) *FailureRepository {
	return &FailureRepository{pool: pool}
}

// Record appends one failure record to the audit table.
func (r *FailureRepository) Record(ctx context.Context, rec payment.FailureRecord) error {
	detail := rec.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshaling failure detail: %w", err)
	}

	_, err = r.pool.Exec(ctx, recordFailureSQL, rec.ProviderOrderID, rec.UserID, detailJSON)
	if err != nil {
		return fmt.Errorf("recording payment failure: %w", err)
	}
	return nil
}
