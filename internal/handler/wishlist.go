package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetWishlist returns the wishlist expanded with current product data.
func (h *Handler) GetWishlist(c *gin.Context) {
	products, err := h.wishlist.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductsResponse(products))
}

type wishlistRequest struct {
	ProductID string `json:"productId"`
}

// AddToWishlist adds a product to the wishlist. Adding a product already
// present is a no-op success.
func (h *Handler) AddToWishlist(c *gin.Context) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	products, err := h.wishlist.Add(c.Request.Context(), currentUser(c), req.ProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductsResponse(products))
}

// RemoveFromWishlist drops a product from the wishlist; removing an absent
// product is a no-op success.
func (h *Handler) RemoveFromWishlist(c *gin.Context) {
	products, err := h.wishlist.Remove(c.Request.Context(), currentUser(c), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductsResponse(products))
}
