// Package auth implements registration, login, and bearer-token
// verification for storefront users.
package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/openkiosk/storefront/internal/domain/user"
)

var (
	// ErrInvalidCredentials is returned on login with a wrong email or
	// password. The two cases are indistinguishable on purpose.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidEmail is returned for an email that fails the shape check.
	ErrInvalidEmail = errors.New("invalid email address")
)

// Credentials is the result of a successful registration or login.
type Credentials struct {
	UserID string
	Email  string
	Token  string
}

// Service handles the register/login/me flows.
type Service struct {
	users  user.Repository
	tokens *TokenIssuer
}

// NewService creates an auth Service.
func NewService(users user.Repository, tokens *TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates a user with a bcrypt-hashed password and signs a token.
// A taken email yields user.ErrDuplicateEmail.
func (s *Service) Register(ctx context.Context, email, password string) (*Credentials, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	return s.credentials(u)
}

// Login verifies the password against the stored hash and signs a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Credentials, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.credentials(u)
}

// VerifyToken resolves a bearer token to the user id it was issued for.
func (s *Service) VerifyToken(token string) (string, error) {
	return s.tokens.Verify(token)
}

func (s *Service) credentials(u *user.User) (*Credentials, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Credentials{UserID: u.ID, Email: u.Email, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail applies the same loose shape check the storefront has always
// used: something, an @, something, a dot, something.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	dot := strings.LastIndex(email[at:], ".")
	return dot > 1 && at+dot < len(email)-1
}
