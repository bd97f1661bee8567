// Package wishlist implements the user's embedded wishlist sub-document:
// an order-preserving set of product references.
package wishlist

import (
	"context"
	"slices"

	"github.com/go-faster/errors"

	"github.com/openkiosk/storefront/internal/domain/product"
	"github.com/openkiosk/storefront/internal/domain/user"
)

const casAttempts = 3

// Service coordinates wishlist mutations against the user and product stores.
type Service struct {
	users    user.Repository
	products product.Repository
}

// NewService creates a wishlist Service.
func NewService(users user.Repository, products product.Repository) *Service {
	return &Service{users: users, products: products}
}

// Get returns the wishlist populated with current product data. References
// to deleted or inactive products are dropped from the projection.
func (s *Service) Get(ctx context.Context, userID string) ([]product.Product, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, u.Wishlist)
}

// Add inserts a product reference. Adding a product that is already wished
// for is a no-op success; the product must exist and be active.
func (s *Service) Add(ctx context.Context, userID, productID string) ([]product.Product, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, product.ErrNotFound
	}

	return s.mutate(ctx, userID, func(ids []string) []string {
		if slices.Contains(ids, productID) {
			return ids
		}
		return append(ids, productID)
	})
}

// Remove deletes a product reference. Removing an absent reference is a
// no-op success.
func (s *Service) Remove(ctx context.Context, userID, productID string) ([]product.Product, error) {
	return s.mutate(ctx, userID, func(ids []string) []string {
		return slices.DeleteFunc(ids, func(id string) bool { return id == productID })
	})
}

func (s *Service) mutate(ctx context.Context, userID string, fn func([]string) []string) ([]product.Product, error) {
	var lastErr error
	for range casAttempts {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		updated := fn(u.Wishlist)

		err = s.users.UpdateWishlist(ctx, userID, updated, u.CartVersion)
		if err == nil {
			return s.populate(ctx, updated)
		}
		if !errors.Is(err, user.ErrVersionConflict) {
			return nil, errors.Wrap(err, "update wishlist")
		}
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, "update wishlist")
}

func (s *Service) populate(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return []product.Product{}, nil
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "populate wishlist")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		if p.Active {
			byID[p.ID] = p
		}
	}

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
