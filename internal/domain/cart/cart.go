// Package cart implements mutations on the user's embedded cart
// sub-document: catalog-validated adds, quantity updates, and removal.
package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/openkiosk/storefront/internal/domain/product"
	"github.com/openkiosk/storefront/internal/domain/user"
)

var (
	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrLineNotFound is returned when updating a line that is not in the cart.
	ErrLineNotFound = errors.New("item not in cart")
)

// OutOfStockError indicates the requested total quantity exceeds the
// product's available stock at the time of the check. Stock is advisory:
// nothing is reserved, so it may change after the check.
type OutOfStockError struct {
	ProductID string
	Requested int
	Stock     int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Stock)
}

// Line is a cart line expanded with current product data. Prices shown to
// the client always reflect the current catalog price; nothing is snapshotted
// until checkout.
type Line struct {
	Product  product.Product
	Quantity int
}

// casAttempts bounds the optimistic-concurrency retry loop on cart writes.
const casAttempts = 3

// Service coordinates cart mutations against the user and product stores.
type Service struct {
	users    user.Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(users user.Repository, products product.Repository) *Service {
	return &Service{users: users, products: products}
}

// Get returns the user's cart populated with current product data. Lines
// whose product no longer resolves are excluded from the projection.
func (s *Service) Get(ctx context.Context, userID string) ([]Line, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, u.Cart)
}

// Add merges quantity into an existing line for the product or appends a new
// one. The resulting total quantity must not exceed the product's stock.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) ([]Line, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.activeProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, func(lines []user.CartLine) ([]user.CartLine, error) {
		for i := range lines {
			if lines[i].ProductID == productID {
				total := lines[i].Quantity + quantity
				if total > p.Stock {
					return nil, &OutOfStockError{ProductID: productID, Requested: total, Stock: p.Stock}
				}
				lines[i].Quantity = total
				return lines, nil
			}
		}
		if quantity > p.Stock {
			return nil, &OutOfStockError{ProductID: productID, Requested: quantity, Stock: p.Stock}
		}
		return append(lines, user.CartLine{ProductID: productID, Quantity: quantity}), nil
	})
}

// SetQuantity overwrites the quantity of an existing line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) ([]Line, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.activeProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.Stock {
		return nil, &OutOfStockError{ProductID: productID, Requested: quantity, Stock: p.Stock}
	}

	return s.mutate(ctx, userID, func(lines []user.CartLine) ([]user.CartLine, error) {
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity = quantity
				return lines, nil
			}
		}
		return nil, ErrLineNotFound
	})
}

// Remove deletes the product's line from the cart. Removing an absent line
// is a no-op success.
func (s *Service) Remove(ctx context.Context, userID, productID string) ([]Line, error) {
	return s.mutate(ctx, userID, func(lines []user.CartLine) ([]user.CartLine, error) {
		out := lines[:0]
		for _, l := range lines {
			if l.ProductID != productID {
				out = append(out, l)
			}
		}
		return out, nil
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, func([]user.CartLine) ([]user.CartLine, error) {
		return []user.CartLine{}, nil
	})
	return err
}

// mutate runs a read-modify-write cycle on the cart sub-document under
// optimistic concurrency, retrying a bounded number of times when a
// concurrent writer bumps the version first.
func (s *Service) mutate(
	ctx context.Context,
	userID string,
	fn func([]user.CartLine) ([]user.CartLine, error),
) ([]Line, error) {
	var lastErr error
	for range casAttempts {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		updated, err := fn(u.Cart)
		if err != nil {
			return nil, err
		}

		err = s.users.UpdateCart(ctx, userID, updated, u.CartVersion)
		if err == nil {
			return s.populate(ctx, updated)
		}
		if !errors.Is(err, user.ErrVersionConflict) {
			return nil, errors.Wrap(err, "update cart")
		}
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, "update cart")
}

// activeProduct fetches a product, treating inactive ones as missing.
func (s *Service) activeProduct(ctx context.Context, productID string) (*product.Product, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, product.ErrNotFound
	}
	return p, nil
}

// populate expands raw cart lines with current product records, silently
// dropping lines whose product was deleted or deactivated.
func (s *Service) populate(ctx context.Context, lines []user.CartLine) ([]Line, error) {
	if len(lines) == 0 {
		return []Line{}, nil
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "populate cart")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		if p.Active {
			byID[p.ID] = p
		}
	}

	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			continue
		}
		out = append(out, Line{Product: p, Quantity: l.Quantity})
	}
	return out, nil
}
