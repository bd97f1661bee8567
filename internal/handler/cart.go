package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openkiosk/storefront/internal/domain/cart"
)

type cartLineResponse struct {
	Product  productResponse `json:"product"`
	Quantity int             `json:"quantity"`
}

func toCartResponse(lines []cart.Line) []cartLineResponse {
	out := make([]cartLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, cartLineResponse{Product: toProductResponse(l.Product), Quantity: l.Quantity})
	}
	return out
}

// GetCart returns the cart expanded with current product data.
func (h *Handler) GetCart(c *gin.Context) {
	lines, err := h.cart.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(lines))
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddToCart merges the given quantity into the cart line for the product,
// appending a new line when absent.
func (h *Handler) AddToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	lines, err := h.cart.Add(c.Request.Context(), currentUser(c), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(lines))
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateCartItem overwrites the quantity of an existing cart line.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req updateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	lines, err := h.cart.SetQuantity(c.Request.Context(), currentUser(c), c.Param("productId"), req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(lines))
}

type removeFromCartRequest struct {
	ProductID string `json:"productId"`
}

// RemoveFromCart drops the cart line for the product. Removing an absent
// line is a no-op success.
func (h *Handler) RemoveFromCart(c *gin.Context) {
	var req removeFromCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	lines, err := h.cart.Remove(c.Request.Context(), currentUser(c), req.ProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(lines))
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.cart.Clear(c.Request.Context(), currentUser(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, []cartLineResponse{})
}
