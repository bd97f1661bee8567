package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkiosk/storefront/internal/domain/product"
	"github.com/openkiosk/storefront/internal/domain/user"
)

// --- Mock implementations ---

type mockUserRepo struct {
	user      *user.User
	conflicts int // first N UpdateCart calls fail with a version conflict
}

func (m *mockUserRepo) Create(_ context.Context, _ *user.User) error { return nil }

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, user.ErrNotFound
	}
	cp := *m.user
	cp.Cart = append([]user.CartLine(nil), m.user.Cart...)
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, _ string) (*user.User, error) {
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) UpdateCart(_ context.Context, id string, cart []user.CartLine, fromVersion int64) error {
	if m.conflicts > 0 {
		m.conflicts--
		m.user.CartVersion++
		return user.ErrVersionConflict
	}
	if fromVersion != m.user.CartVersion {
		return user.ErrVersionConflict
	}
	m.user.Cart = cart
	m.user.CartVersion++
	return nil
}

func (m *mockUserRepo) UpdateWishlist(_ context.Context, _ string, wishlist []string, _ int64) error {
	m.user.Wishlist = wishlist
	return nil
}

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) List(_ context.Context, _ product.Filter) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Create(_ context.Context, _ *product.Product) error { return nil }

func (m *mockProductRepo) Update(_ context.Context, _ string, _ product.Update) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) Delete(_ context.Context, _ string) error { return nil }

// --- Helpers ---

func newTestProduct(id string, price string, stock int) product.Product {
	return product.Product{
		ID:     id,
		Name:   "Product " + id,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: true,
	}
}

func newService(u *user.User, products ...product.Product) (*Service, *mockUserRepo, *mockProductRepo) {
	users := &mockUserRepo{user: u}
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	prods := &mockProductRepo{byID: byID}
	return NewService(users, prods), users, prods
}

// --- Tests ---

func TestAdd_AppendsNewLine(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	svc, users, _ := newService(&user.User{ID: "u1"}, p)

	lines, err := svc.Add(context.Background(), "u1", "p1", 2)

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "p1", lines[0].Product.ID)
	assert.Equal(t, int64(1), users.user.CartVersion)
}

func TestAdd_MergesExistingLine(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	u := &user.User{ID: "u1", Cart: []user.CartLine{{ProductID: "p1", Quantity: 2}}}
	svc, _, _ := newService(u, p)

	lines, err := svc.Add(context.Background(), "u1", "p1", 2)

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)
}

func TestAdd_RejectsWhenMergedQuantityExceedsStock(t *testing.T) {
	p := newTestProduct("p1", "10.00", 3)
	u := &user.User{ID: "u1", Cart: []user.CartLine{{ProductID: "p1", Quantity: 2}}}
	svc, _, _ := newService(u, p)

	_, err := svc.Add(context.Background(), "u1", "p1", 2)

	var oosErr *OutOfStockError
	require.ErrorAs(t, err, &oosErr)
	assert.Equal(t, 4, oosErr.Requested)
	assert.Equal(t, 3, oosErr.Stock)
}

func TestAdd_SingleUnitStock(t *testing.T) {
	p := newTestProduct("p1", "10.00", 1)
	svc, _, _ := newService(&user.User{ID: "u1"}, p)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "p1", 1)
	require.NoError(t, err)

	_, err = svc.Add(ctx, "u1", "p1", 1)
	var oosErr *OutOfStockError
	require.ErrorAs(t, err, &oosErr)
}

func TestAdd_UnknownProduct(t *testing.T) {
	svc, _, _ := newService(&user.User{ID: "u1"})

	_, err := svc.Add(context.Background(), "u1", "ghost", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAdd_InactiveProduct(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	p.Active = false
	svc, _, _ := newService(&user.User{ID: "u1"}, p)

	_, err := svc.Add(context.Background(), "u1", "p1", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAdd_InvalidQuantity(t *testing.T) {
	svc, _, _ := newService(&user.User{ID: "u1"})

	_, err := svc.Add(context.Background(), "u1", "p1", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSetQuantity_Overwrites(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	u := &user.User{ID: "u1", Cart: []user.CartLine{{ProductID: "p1", Quantity: 1}}}
	svc, _, _ := newService(u, p)

	lines, err := svc.SetQuantity(context.Background(), "u1", "p1", 4)

	require.NoError(t, err)
	assert.Equal(t, 4, lines[0].Quantity)
}

func TestSetQuantity_RejectsNonPositive(t *testing.T) {
	svc, _, _ := newService(&user.User{ID: "u1"})

	for _, qty := range []int{0, -1} {
		_, err := svc.SetQuantity(context.Background(), "u1", "p1", qty)
		require.ErrorIs(t, err, ErrInvalidQuantity, "qty %d", qty)
	}
}

func TestSetQuantity_RejectsOverStock(t *testing.T) {
	p := newTestProduct("p1", "10.00", 3)
	u := &user.User{ID: "u1", Cart: []user.CartLine{{ProductID: "p1", Quantity: 1}}}
	svc, _, _ := newService(u, p)

	_, err := svc.SetQuantity(context.Background(), "u1", "p1", 4)

	var oosErr *OutOfStockError
	require.ErrorAs(t, err, &oosErr)
}

func TestSetQuantity_LineNotInCart(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	svc, _, _ := newService(&user.User{ID: "u1"}, p)

	_, err := svc.SetQuantity(context.Background(), "u1", "p1", 1)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestRemove_Idempotent(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	u := &user.User{ID: "u1", Cart: []user.CartLine{{ProductID: "p1", Quantity: 1}}}
	svc, _, _ := newService(u, p)
	ctx := context.Background()

	lines, err := svc.Remove(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	// Removing an absent line is a no-op success.
	lines, err = svc.Remove(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestClear(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	u := &user.User{ID: "u1", Cart: []user.CartLine{{ProductID: "p1", Quantity: 2}}}
	svc, users, _ := newService(u, p)

	require.NoError(t, svc.Clear(context.Background(), "u1"))
	assert.Empty(t, users.user.Cart)
}

func TestGet_ExcludesDeletedProducts(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	u := &user.User{ID: "u1", Cart: []user.CartLine{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "deleted", Quantity: 3},
	}}
	svc, _, _ := newService(u, p)

	lines, err := svc.Get(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "p1", lines[0].Product.ID)
}

func TestMutate_RetriesOnVersionConflict(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	svc, users, _ := newService(&user.User{ID: "u1"}, p)
	users.conflicts = 2

	lines, err := svc.Add(context.Background(), "u1", "p1", 1)

	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestMutate_GivesUpAfterRepeatedConflicts(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	svc, users, _ := newService(&user.User{ID: "u1"}, p)
	users.conflicts = casAttempts

	_, err := svc.Add(context.Background(), "u1", "p1", 1)
	require.ErrorIs(t, err, user.ErrVersionConflict)
}
