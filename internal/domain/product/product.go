package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is
// no longer active.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	ImageURL    string
	Stock       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows a catalog listing. Zero values mean "no constraint".
type Filter struct {
	// Category matches case-insensitively as a substring.
	Category string
	// Search matches case-insensitively against name and description.
	Search string
	// PriceMin and PriceMax bound the price range inclusively.
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
}

// Update carries a partial product mutation; nil fields keep current values.
type Update struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	ImageURL    *string
	Stock       *int
	Active      *bool
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, u Update) (*Product, error)
	Delete(ctx context.Context, id string) error
}
