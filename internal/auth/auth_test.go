package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkiosk/storefront/internal/domain/user"
)

type mockUserRepo struct {
	byEmail map[string]*user.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byEmail: make(map[string]*user.User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *user.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return user.ErrDuplicateEmail
	}
	m.byEmail[u.Email] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) UpdateCart(_ context.Context, _ string, _ []user.CartLine, _ int64) error {
	return nil
}

func (m *mockUserRepo) UpdateWishlist(_ context.Context, _ string, _ []string, _ int64) error {
	return nil
}

func newService() (*Service, *mockUserRepo) {
	repo := newMockUserRepo()
	return NewService(repo, NewTokenIssuer([]byte("test-secret"), time.Hour)), repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	creds, err := svc.Register(ctx, "Shopper@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "shopper@example.com", creds.Email)
	assert.NotEmpty(t, creds.Token)

	got, err := svc.Login(ctx, "shopper@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, creds.UserID, got.UserID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@b.co", "hunter22")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "a@b.co", "other-password")
	require.ErrorIs(t, err, user.ErrDuplicateEmail)
}

func TestRegister_InvalidInput(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "hunter22")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Register(ctx, "a@b.co", "short")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@b.co", "hunter22")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@b.co", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@b.co", "hunter22")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestToken_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("s3cret"), time.Hour)

	token, err := issuer.Issue("user-42")
	require.NoError(t, err)

	id, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)
}

func TestToken_WrongSecret(t *testing.T) {
	token, err := NewTokenIssuer([]byte("one"), time.Hour).Issue("user-42")
	require.NoError(t, err)

	_, err = NewTokenIssuer([]byte("two"), time.Hour).Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_Expired(t *testing.T) {
	issuer := NewTokenIssuer([]byte("s3cret"), time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := issuer.Issue("user-42")
	require.NoError(t, err)

	verifier := NewTokenIssuer([]byte("s3cret"), time.Minute)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_Garbage(t *testing.T) {
	issuer := NewTokenIssuer([]byte("s3cret"), time.Hour)

	for _, tok := range []string{"", "x", "a.b.c"} {
		_, err := issuer.Verify(tok)
		require.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
