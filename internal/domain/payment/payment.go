// Package payment defines the storefront's contract with the payment
// provider. The concrete gateway is injected so the checkout flow can be
// exercised against a fake in tests.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for non-positive intent amounts.
	ErrInvalidAmount = errors.New("invalid payment amount")
	// ErrVerificationFailed is returned when a payment callback's signature
	// does not match; no order is ever created from such a callback.
	ErrVerificationFailed = errors.New("payment verification failed")
)

// UpstreamError wraps a provider-side failure (unreachable, 5xx). It is
// surfaced to the caller and never retried automatically.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return "payment provider: " + e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Intent is a provider-side record of an expected incoming payment, created
// before the user pays.
type Intent struct {
	ID string
	// Amount is in the provider's minor units (e.g. cents).
	Amount   int64
	Currency string
	// KeyID is the provider public key the client needs to complete payment.
	KeyID string
}

// Gateway is the provider-facing side of the checkout flow.
type Gateway interface {
	// CreateIntent registers an expected payment of the given major-unit
	// amount with the provider. Implementations reject amount <= 0 with
	// ErrInvalidAmount and honor the context deadline.
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, notes map[string]string) (*Intent, error)
	// VerifySignature reports whether signature is a valid provider
	// signature over the (intent id, payment id) pair. It never errors on
	// a mismatch; false means forged or corrupted.
	VerifySignature(intentID, paymentID, signature string) bool
	// FetchPayment returns the provider's raw payment record as JSON.
	FetchPayment(ctx context.Context, paymentID string) ([]byte, error)
}

// FailureRecord is an audit entry for a failed payment attempt.
type FailureRecord struct {
	ProviderOrderID string
	UserID          string
	Detail          map[string]any
	CreatedAt       time.Time
}

// FailureRecorder persists payment failure audit records.
type FailureRecorder interface {
	Record(ctx context.Context, rec FailureRecord) error
}
