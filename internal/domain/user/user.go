package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when registering an email that is taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrVersionConflict is returned when a cart write loses a
	// compare-and-swap race on the cart version.
	ErrVersionConflict = errors.New("cart version conflict")
)

// CartLine is one (product, quantity) pairing inside a user's cart.
// It is an embedded sub-document: it has no identity outside its owner.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// User is the owning aggregate for cart and wishlist.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Cart         []CartLine
	Wishlist     []string
	// CartVersion guards cart and wishlist writes with optimistic
	// concurrency: a write must present the version it read.
	CartVersion int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines persistence operations for users and their embedded
// cart/wishlist sub-documents.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// UpdateCart replaces the cart sub-document iff fromVersion matches the
	// stored cart version, bumping it by one. Returns ErrVersionConflict on
	// a lost race.
	UpdateCart(ctx context.Context, id string, cart []CartLine, fromVersion int64) error
	// UpdateWishlist replaces the wishlist sub-document under the same
	// version guard as UpdateCart.
	UpdateWishlist(ctx context.Context, id string, wishlist []string, fromVersion int64) error
}
