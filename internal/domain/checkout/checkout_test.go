package checkout

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkiosk/storefront/internal/domain/order"
	"github.com/openkiosk/storefront/internal/domain/payment"
	"github.com/openkiosk/storefront/internal/domain/pricing"
	"github.com/openkiosk/storefront/internal/domain/product"
	"github.com/openkiosk/storefront/internal/domain/user"
)

// --- Mock implementations ---

type mockUserRepo struct {
	user *user.User
}

func (m *mockUserRepo) Create(_ context.Context, _ *user.User) error { return nil }

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, user.ErrNotFound
	}
	cp := *m.user
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, _ string) (*user.User, error) {
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) UpdateCart(_ context.Context, _ string, cart []user.CartLine, _ int64) error {
	m.user.Cart = cart
	return nil
}

func (m *mockUserRepo) UpdateWishlist(_ context.Context, _ string, _ []string, _ int64) error {
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

type mockOrderRepo struct {
	users       *mockUserRepo
	lastOrder   *order.Order
	lastReserve bool
	err         error
}

func (m *mockOrderRepo) CreateAndClearCart(_ context.Context, o *order.Order, reserveStock bool) error {
	if m.err != nil {
		return m.err
	}
	m.lastOrder = o
	m.lastReserve = reserveStock
	// Mirrors the real repository: the cart is cleared only together with a
	// successfully persisted order.
	m.users.user.Cart = nil
	return nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, _ string) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, _, _ string) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _, _ string, _ order.Status) (*order.Order, error) {
	return nil, order.ErrNotFound
}

type fakeGateway struct {
	validSignature string
	lastAmount     decimal.Decimal
	intentErr      error
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount decimal.Decimal, currency string, _ map[string]string) (*payment.Intent, error) {
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, payment.ErrInvalidAmount
	}
	g.lastAmount = amount
	return &payment.Intent{
		ID:       "intent_1",
		Amount:   amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency: currency,
		KeyID:    "key_test",
	}, nil
}

func (g *fakeGateway) VerifySignature(_, _, signature string) bool {
	return signature == g.validSignature
}

func (g *fakeGateway) FetchPayment(_ context.Context, _ string) ([]byte, error) {
	return []byte(`{}`), nil
}

type mockFailureRecorder struct {
	records []payment.FailureRecord
	err     error
}

func (m *mockFailureRecorder) Record(_ context.Context, rec payment.FailureRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

// --- Helpers ---

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc      *Service
	users    *mockUserRepo
	products *mockProductRepo
	orders   *mockOrderRepo
	gateway  *fakeGateway
	failures *mockFailureRecorder
}

func newFixture(u *user.User, cfg Config, products ...product.Product) *fixture {
	users := &mockUserRepo{user: u}
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	prods := &mockProductRepo{byID: byID}
	orders := &mockOrderRepo{users: users}
	gw := &fakeGateway{validSignature: "good-signature"}
	fr := &mockFailureRecorder{}

	return &fixture{
		svc:      NewService(users, prods, orders, gw, fr, pricing.NewDefaultCalculator(), cfg),
		users:    users,
		products: prods,
		orders:   orders,
		gateway:  gw,
		failures: fr,
	}
}

func testProduct(id, price string, stock int) product.Product {
	return product.Product{
		ID:     id,
		Name:   "Product " + id,
		Price:  d(price),
		Stock:  stock,
		Active: true,
	}
}

func twoLineUser() *user.User {
	// 10.00 x2 + 25.00 x1 -> subtotal 45.00, shipping 5.99, tax 3.60,
	// total 54.59.
	return &user.User{
		ID:    "u1",
		Email: "u1@example.com",
		Cart: []user.CartLine{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
	}
}

func goodCallback() Callback {
	return Callback{
		ProviderOrderID:   "order_abc",
		ProviderPaymentID: "pay_xyz",
		Signature:         "good-signature",
	}
}

// --- Tests ---

func TestCreateIntent_UsesServerComputedTotal(t *testing.T) {
	f := newFixture(twoLineUser(), Config{}, testProduct("p1", "10.00", 10), testProduct("p2", "25.00", 10))

	intent, err := f.svc.CreateIntent(context.Background(), "u1")

	require.NoError(t, err)
	assert.True(t, d("54.59").Equal(f.gateway.lastAmount), "amount %s", f.gateway.lastAmount)
	assert.Equal(t, int64(5459), intent.Amount)
	assert.Equal(t, "INR", intent.Currency)
}

func TestCreateIntent_EmptyCart(t *testing.T) {
	f := newFixture(&user.User{ID: "u1"}, Config{})

	_, err := f.svc.CreateIntent(context.Background(), "u1")
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateIntent_AllLinesUnresolvable(t *testing.T) {
	u := &user.User{ID: "u1", Cart: []user.CartLine{{ProductID: "gone", Quantity: 1}}}
	f := newFixture(u, Config{})

	_, err := f.svc.CreateIntent(context.Background(), "u1")
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestVerifyAndPlace_Success(t *testing.T) {
	f := newFixture(twoLineUser(), Config{}, testProduct("p1", "10.00", 10), testProduct("p2", "25.00", 10))

	o, err := f.svc.VerifyAndPlace(context.Background(), "u1", goodCallback(), order.Address{City: "Pune"})

	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, o.Status)
	assert.True(t, d("54.59").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, "order_abc", o.Payment.OrderID)
	assert.Equal(t, "pay_xyz", o.Payment.PaymentID)
	require.Len(t, o.Items, 2)
	assert.True(t, d("10.00").Equal(o.Items[0].Price))
	assert.Empty(t, f.users.user.Cart, "cart must be cleared after order persistence")
}

func TestVerifyAndPlace_PriceSnapshotImmuneToLaterEdits(t *testing.T) {
	f := newFixture(twoLineUser(), Config{}, testProduct("p1", "10.00", 10), testProduct("p2", "25.00", 10))

	o, err := f.svc.VerifyAndPlace(context.Background(), "u1", goodCallback(), order.Address{})
	require.NoError(t, err)

	// Later catalog edits never change the captured price.
	p := f.products.byID["p1"]
	p.Price = d("99.00")
	f.products.byID["p1"] = p

	assert.True(t, d("10.00").Equal(o.Items[0].Price))
	assert.True(t, d("10.00").Equal(f.orders.lastOrder.Items[0].Price))
}

func TestVerifyAndPlace_BadSignatureLeavesCartIntact(t *testing.T) {
	f := newFixture(twoLineUser(), Config{}, testProduct("p1", "10.00", 10), testProduct("p2", "25.00", 10))

	cb := goodCallback()
	cb.Signature = "forged"
	_, err := f.svc.VerifyAndPlace(context.Background(), "u1", cb, order.Address{})

	require.ErrorIs(t, err, payment.ErrVerificationFailed)
	assert.Len(t, f.users.user.Cart, 2, "cart untouched so the user can retry")
	assert.Nil(t, f.orders.lastOrder, "no order may be created from a forged callback")
}

func TestVerifyAndPlace_DropsUnresolvableLines(t *testing.T) {
	u := &user.User{ID: "u1", Cart: []user.CartLine{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "deleted", Quantity: 5},
	}}
	f := newFixture(u, Config{}, testProduct("p1", "20.00", 10))

	o, err := f.svc.VerifyAndPlace(context.Background(), "u1", goodCallback(), order.Address{})

	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "p1", o.Items[0].ProductID)
}

func TestVerifyAndPlace_PersistFailureIsIntegrityGap(t *testing.T) {
	f := newFixture(twoLineUser(), Config{}, testProduct("p1", "10.00", 10), testProduct("p2", "25.00", 10))
	f.orders.err = errors.New("db down")

	_, err := f.svc.VerifyAndPlace(context.Background(), "u1", goodCallback(), order.Address{})

	var gap *IntegrityGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "pay_xyz", gap.ProviderPaymentID)
	assert.Len(t, f.users.user.Cart, 2, "cart is never cleared before the order persists")
}

func TestVerifyAndPlace_ReserveStockPolicy(t *testing.T) {
	f := newFixture(twoLineUser(), Config{ReserveStock: true},
		testProduct("p1", "10.00", 10), testProduct("p2", "25.00", 10))

	_, err := f.svc.VerifyAndPlace(context.Background(), "u1", goodCallback(), order.Address{})

	require.NoError(t, err)
	assert.True(t, f.orders.lastReserve)
}

func TestPlacePending(t *testing.T) {
	f := newFixture(twoLineUser(), Config{}, testProduct("p1", "10.00", 10), testProduct("p2", "25.00", 10))

	o, err := f.svc.PlacePending(context.Background(), "u1", order.Address{City: "Pune"})

	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.True(t, d("54.59").Equal(o.Total))
	assert.Empty(t, f.users.user.Cart)
}

func TestRecordFailure_NeverFails(t *testing.T) {
	f := newFixture(twoLineUser(), Config{})
	f.failures.err = errors.New("audit store down")

	// Must not panic or propagate the error.
	f.svc.RecordFailure(context.Background(), "u1", "order_abc", map[string]any{"reason": "declined"})

	f.failures.err = nil
	f.svc.RecordFailure(context.Background(), "u1", "order_abc", map[string]any{"reason": "declined"})
	require.Len(t, f.failures.records, 1)
	assert.Equal(t, "order_abc", f.failures.records[0].ProviderOrderID)
}
