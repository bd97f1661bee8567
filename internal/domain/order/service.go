package order

import (
	"context"

	"github.com/go-faster/errors"
)

// Service exposes owner-scoped order queries and status transitions.
type Service struct {
	orders Repository
}

// NewService creates an order Service backed by the given repository.
func NewService(orders Repository) *Service {
	return &Service{orders: orders}
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	list, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return list, nil
}

// GetByID returns a single order, scoped to its owner. Requesting another
// user's order yields ErrNotFound rather than leaking its existence.
func (s *Service) GetByID(ctx context.Context, id, userID string) (*Order, error) {
	return s.orders.GetByID(ctx, id, userID)
}

// UpdateStatus moves an order to the given status if the lifecycle permits.
func (s *Service) UpdateStatus(ctx context.Context, id, userID string, to Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(o.Status, to) {
		return nil, &InvalidTransitionError{From: o.Status, To: to}
	}

	return s.orders.UpdateStatus(ctx, id, userID, to)
}

// Cancel cancels an order. Permitted only from Pending or Paid; orders that
// have shipped cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id, userID string) (*Order, error) {
	return s.UpdateStatus(ctx, id, userID, StatusCancelled)
}
