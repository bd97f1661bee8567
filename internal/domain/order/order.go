package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when an order does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid order status")
)

// InsufficientStockError indicates a stock reservation that would have taken
// a product's stock below zero.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d", e.ProductID, e.Requested)
}

// InvalidTransitionError indicates a status change the order lifecycle does
// not permit.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusPaid      Status = "Paid"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// transitions maps each status to the statuses reachable from it. Shipped,
// Delivered, and Cancelled orders cannot be cancelled.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Line is one purchased line item. Price is the unit price captured at the
// moment the order was created; later catalog edits never change it.
type Line struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Address is the immutable shipping address snapshot on an order.
type Address struct {
	FullName string `json:"fullName,omitempty"`
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	PostCode string `json:"postCode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// PaymentRef correlates an order with the payment provider's records.
type PaymentRef struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Order is an immutable-after-creation record of a purchase. Only Status
// changes after creation; items and captured prices never do.
type Order struct {
	ID              string
	UserID          string
	Items           []Line
	Subtotal        decimal.Decimal
	Shipping        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	Status          Status
	ShippingAddress Address
	Payment         PaymentRef
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	// CreateAndClearCart persists the order and empties the owning user's
	// cart as one atomic unit: the cart is cleared only together with a
	// successfully persisted order. When reserveStock is true it also
	// decrements product stock for every line, failing the whole unit if
	// any product would go negative.
	CreateAndClearCart(ctx context.Context, o *Order, reserveStock bool) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	GetByID(ctx context.Context, id, userID string) (*Order, error)
	UpdateStatus(ctx context.Context, id, userID string, status Status) (*Order, error)
}
