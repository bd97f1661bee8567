package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// Register creates a new account and returns a bearer token.
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	creds, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, credentialsResponse{ID: creds.UserID, Email: creds.Email, Token: creds.Token})
}

// Login exchanges email and password for a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	creds, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, credentialsResponse{ID: creds.UserID, Email: creds.Email, Token: creds.Token})
}

// Me returns the authenticated user with cart and wishlist expanded against
// the current catalog.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)

	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cartLines, err := h.cart.Get(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	wishlistProducts, err := h.wishlist.Get(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       u.ID,
		"email":    u.Email,
		"cart":     toCartResponse(cartLines),
		"wishlist": toProductsResponse(wishlistProducts),
	})
}
