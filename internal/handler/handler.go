// Package handler exposes the storefront REST API. Handlers translate HTTP
// requests into domain service calls and map domain errors onto status codes;
// no business rules live here.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/openkiosk/storefront/internal/auth"
	"github.com/openkiosk/storefront/internal/domain/cart"
	"github.com/openkiosk/storefront/internal/domain/checkout"
	"github.com/openkiosk/storefront/internal/domain/order"
	"github.com/openkiosk/storefront/internal/domain/payment"
	"github.com/openkiosk/storefront/internal/domain/product"
	"github.com/openkiosk/storefront/internal/domain/user"
	"github.com/openkiosk/storefront/internal/domain/wishlist"
)

// Handler bundles the API surface over the domain services.
type Handler struct {
	auth     *auth.Service
	users    user.Repository
	products product.Repository
	cart     *cart.Service
	wishlist *wishlist.Service
	orders   *order.Service
	checkout *checkout.Service
	gateway  payment.Gateway
}

// New creates a Handler over the given services.
func New(
	authSvc *auth.Service,
	users user.Repository,
	products product.Repository,
	cartSvc *cart.Service,
	wishlistSvc *wishlist.Service,
	orderSvc *order.Service,
	checkoutSvc *checkout.Service,
	gateway payment.Gateway,
) *Handler {
	return &Handler{
		auth:     authSvc,
		users:    users,
		products: products,
		cart:     cartSvc,
		wishlist: wishlistSvc,
		orders:   orderSvc,
		checkout: checkoutSvc,
		gateway:  gateway,
	}
}

// respondError maps a domain error onto an HTTP status and a short JSON body.
// Unexpected errors become a generic 500 without leaking internals.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	var (
		outOfStock        *cart.OutOfStockError
		invalidTransition *order.InvalidTransitionError
		insufficient      *order.InsufficientStockError
		gap               *checkout.IntegrityGapError
		upstream          *payment.UpstreamError
	)

	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()

	case errors.Is(err, user.ErrDuplicateEmail):
		return http.StatusConflict, err.Error()

	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrVerificationFailed):
		return http.StatusBadRequest, err.Error()

	case errors.As(err, &outOfStock),
		errors.As(err, &invalidTransition):
		return http.StatusBadRequest, err.Error()

	case errors.As(err, &insufficient),
		errors.Is(err, user.ErrVersionConflict):
		return http.StatusConflict, err.Error()

	case errors.As(err, &gap), errors.As(err, &upstream):
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}
