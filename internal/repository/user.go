package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openkiosk/storefront/internal/domain/user"
)

const (
	userColumns = `id, email, password_hash, cart, wishlist, cart_version, created_at, updated_at`

	createUserSQL = `INSERT INTO users (id, email, password_hash, cart, wishlist)
		VALUES ($1, $2, $3, $4, $5)`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	updateCartSQL = `UPDATE users SET cart = $2, cart_version = cart_version + 1, updated_at = now()
		WHERE id = $1 AND cart_version = $3`

	updateWishlistSQL = `UPDATE users SET wishlist = $2, cart_version = cart_version + 1, updated_at = now()
		WHERE id = $1 AND cart_version = $3`
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. Cart and
// wishlist live in JSONB columns on the users row, so every mutation is a
// single-row write.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create persists a new user with empty cart and wishlist.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	cartJSON, wishlistJSON, err := marshalSubDocs(u.Cart, u.Wishlist)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, createUserSQL, u.ID, u.Email, u.PasswordHash, cartJSON, wishlistJSON)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.ErrDuplicateEmail
		}
		return fmt.Errorf("creating user %q: %w", u.ID, err)
	}
	return nil
}

// GetByID returns a user with cart and wishlist populated.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail returns a user by their unique email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

// UpdateCart replaces the cart sub-document iff fromVersion still matches,
// bumping the version by one. Returns ErrVersionConflict on a lost race.
func (r *UserRepository) UpdateCart(ctx context.Context, id string, cart []user.CartLine, fromVersion int64) error {
	if cart == nil {
		cart = []user.CartLine{}
	}
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshaling cart: %w", err)
	}

	tag, err := r.pool.Exec(ctx, updateCartSQL, id, cartJSON, fromVersion)
	if err != nil {
		return fmt.Errorf("updating cart for user %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrVersionConflict
	}
	return nil
}

// UpdateWishlist replaces the wishlist sub-document under the same version
// guard as UpdateCart.
func (r *UserRepository) UpdateWishlist(ctx context.Context, id string, wishlist []string, fromVersion int64) error {
	if wishlist == nil {
		wishlist = []string{}
	}
	wishlistJSON, err := json.Marshal(wishlist)
	if err != nil {
		return fmt.Errorf("marshaling wishlist: %w", err)
	}

	tag, err := r.pool.Exec(ctx, updateWishlistSQL, id, wishlistJSON, fromVersion)
	if err != nil {
		return fmt.Errorf("updating wishlist for user %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrVersionConflict
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query, arg string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u            user.User
		cartJSON     []byte
		wishlistJSON []byte
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &cartJSON, &wishlistJSON,
		&u.CartVersion, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(cartJSON, &u.Cart); err != nil {
		return u, fmt.Errorf("unmarshaling cart: %w", err)
	}
	if err := json.Unmarshal(wishlistJSON, &u.Wishlist); err != nil {
		return u, fmt.Errorf("unmarshaling wishlist: %w", err)
	}
	return u, nil
}

func marshalSubDocs(cart []user.CartLine, wishlist []string) ([]byte, []byte, error) {
	if cart == nil {
		cart = []user.CartLine{}
	}
	if wishlist == nil {
		wishlist = []string{}
	}
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling cart: %w", err)
	}
	wishlistJSON, err := json.Marshal(wishlist)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling wishlist: %w", err)
	}
	return cartJSON, wishlistJSON, nil
}
