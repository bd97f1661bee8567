// Package checkout coordinates the cart -> payment -> order flow: it
// snapshots the mutable cart, prices the snapshot server-side, creates a
// provider payment intent, verifies the signed callback, and atomically
// converts the cart into an immutable order.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openkiosk/storefront/internal/domain/order"
	"github.com/openkiosk/storefront/internal/domain/payment"
	"github.com/openkiosk/storefront/internal/domain/pricing"
	"github.com/openkiosk/storefront/internal/domain/product"
	"github.com/openkiosk/storefront/internal/domain/user"
)

// ErrEmptyCart is returned when checkout starts with no resolvable cart
// lines. Nothing is mutated in that case.
var ErrEmptyCart = errors.New("cart is empty")

// IntegrityGapError marks the one partial failure this flow cannot undo: the
// provider confirmed a payment but persisting the order failed. There is no
// automatic compensation; the record requires manual reconciliation.
type IntegrityGapError struct {
	ProviderOrderID   string
	ProviderPaymentID string
	Err               error
}

func (e *IntegrityGapError) Error() string {
	return "payment " + e.ProviderPaymentID + " verified but order persistence failed: " + e.Err.Error()
}

func (e *IntegrityGapError) Unwrap() error { return e.Err }

// Callback carries the provider's payment completion parameters.
type Callback struct {
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

// Config holds checkout policy switches.
type Config struct {
	// Currency is the provider currency code for payment intents.
	Currency string
	// ReserveStock, when true, decrements product stock inside the order
	// persistence transaction. When false (the default policy) stock is
	// advisory: validated on cart mutation, never held.
	ReserveStock bool
}

// Service is the checkout orchestrator.
type Service struct {
	users    user.Repository
	products product.Repository
	orders   order.Repository
	gateway  payment.Gateway
	failures payment.FailureRecorder
	pricer   *pricing.Calculator
	cfg      Config
}

// NewService creates a checkout Service. The payment gateway is a
// constructed dependency so tests can substitute a fake.
func NewService(
	users user.Repository,
	products product.Repository,
	orders order.Repository,
	gateway payment.Gateway,
	failures payment.FailureRecorder,
	pricer *pricing.Calculator,
	cfg Config,
) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Service{
		users:    users,
		products: products,
		orders:   orders,
		gateway:  gateway,
		failures: failures,
		pricer:   pricer,
		cfg:      cfg,
	}
}

// snapshot is a point-in-time view of a user's cart with resolved products.
type snapshot struct {
	lines []order.Line
	quote pricing.Quote
	email string
}

// CreateIntent snapshots the cart, prices it, and registers a payment intent
// with the provider for the computed total. The client-submitted amount is
// never used. Nothing is persisted; the intent is completed out-of-band.
func (s *Service) CreateIntent(ctx context.Context, userID string) (*payment.Intent, error) {
	snap, err := s.snapshotCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, snap.quote.Total, s.cfg.Currency, map[string]string{
		"userId": userID,
		"email":  snap.email,
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// VerifyAndPlace handles the provider callback: it verifies the signature,
// re-reads the cart, and atomically persists a Paid order while clearing the
// cart. On signature mismatch the cart is left untouched so the user can
// retry.
func (s *Service) VerifyAndPlace(ctx context.Context, userID string, cb Callback, addr order.Address) (*order.Order, error) {
	if !s.gateway.VerifySignature(cb.ProviderOrderID, cb.ProviderPaymentID, cb.Signature) {
		return nil, payment.ErrVerificationFailed
	}

	// Re-read the cart at verification time; these are the prices that get
	// captured into the order.
	snap, err := s.snapshotCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	o := s.buildOrder(userID, snap, addr)
	o.Status = order.StatusPaid
	o.Payment = order.PaymentRef{
		OrderID:   cb.ProviderOrderID,
		PaymentID: cb.ProviderPaymentID,
		Signature: cb.Signature,
	}

	if err := s.orders.CreateAndClearCart(ctx, o, s.cfg.ReserveStock); err != nil {
		// The payment went through; losing the order here is the one gap
		// this design cannot compensate automatically.
		gap := &IntegrityGapError{
			ProviderOrderID:   cb.ProviderOrderID,
			ProviderPaymentID: cb.ProviderPaymentID,
			Err:               err,
		}
		zctx.From(ctx).Error("payment verified but order not persisted; manual reconciliation required",
			zap.String("provider_order_id", cb.ProviderOrderID),
			zap.String("provider_payment_id", cb.ProviderPaymentID),
			zap.Error(err),
		)
		return nil, gap
	}

	return o, nil
}

// PlacePending creates an unpaid order directly from the cart snapshot, for
// payment on delivery. Same snapshot and pricing path as the verified flow.
func (s *Service) PlacePending(ctx context.Context, userID string, addr order.Address) (*order.Order, error) {
	snap, err := s.snapshotCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	o := s.buildOrder(userID, snap, addr)
	o.Status = order.StatusPending

	if err := s.orders.CreateAndClearCart(ctx, o, s.cfg.ReserveStock); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// RecordFailure stores an audit record for a failed payment attempt. It
// never fails the request: recording problems are logged and swallowed.
func (s *Service) RecordFailure(ctx context.Context, userID, providerOrderID string, detail map[string]any) {
	err := s.failures.Record(ctx, payment.FailureRecord{
		ProviderOrderID: providerOrderID,
		UserID:          userID,
		Detail:          detail,
	})
	if err != nil {
		zctx.From(ctx).Warn("failed to record payment failure",
			zap.String("provider_order_id", providerOrderID),
			zap.Error(err),
		)
	}
}

// snapshotCart loads the user's cart, resolves every line against the
// catalog, drops lines whose product no longer resolves, and prices the
// remainder. Returns ErrEmptyCart when nothing resolvable remains.
func (s *Service) snapshotCart(ctx context.Context, userID string) (*snapshot, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(u.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(u.Cart))
	for i, l := range u.Cart {
		ids[i] = l.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve cart products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		if p.Active {
			byID[p.ID] = p
		}
	}

	var (
		lines      []order.Line
		quoteLines []pricing.Line
	)
	for _, l := range u.Cart {
		p, ok := byID[l.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, order.Line{
			ProductID: p.ID,
			Quantity:  l.Quantity,
			Price:     p.Price,
		})
		quoteLines = append(quoteLines, pricing.Line{UnitPrice: p.Price, Quantity: l.Quantity})
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	return &snapshot{
		lines: lines,
		quote: s.pricer.Quote(quoteLines),
		email: u.Email,
	}, nil
}

func (s *Service) buildOrder(userID string, snap *snapshot, addr order.Address) *order.Order {
	return &order.Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Items:           snap.lines,
		Subtotal:        snap.quote.Subtotal,
		Shipping:        snap.quote.Shipping,
		Tax:             snap.quote.Tax,
		Total:           snap.quote.Total,
		ShippingAddress: addr,
	}
}
