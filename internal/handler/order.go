package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/openkiosk/storefront/internal/domain/order"
)

type orderResponse struct {
	ID                string          `json:"id"`
	Items             []order.Line    `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Shipping          decimal.Decimal `json:"shipping"`
	Tax               decimal.Decimal `json:"tax"`
	Total             decimal.Decimal `json:"total"`
	Status            string          `json:"status"`
	ShippingAddress   order.Address   `json:"shippingAddress"`
	ProviderOrderID   string          `json:"providerOrderId,omitempty"`
	ProviderPaymentID string          `json:"providerPaymentId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:                o.ID,
		Items:             o.Items,
		Subtotal:          o.Subtotal,
		Shipping:          o.Shipping,
		Tax:               o.Tax,
		Total:             o.Total,
		Status:            string(o.Status),
		ShippingAddress:   o.ShippingAddress,
		ProviderOrderID:   o.Payment.OrderID,
		ProviderPaymentID: o.Payment.PaymentID,
		CreatedAt:         o.CreatedAt,
	}
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListByUser(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GetOrder returns a single order; orders of other users read as 404.
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.GetByID(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

type createOrderRequest struct {
	ShippingAddress addressPayload `json:"shippingAddress"`
}

// CreateOrder places an unpaid order directly from the cart, for payment on
// delivery. Same snapshot and pricing path as the verified payment flow.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	o, err := h.checkout.PlacePending(c.Request.Context(), currentUser(c), req.ShippingAddress.toDomain())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(o))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order along its lifecycle; transitions outside
// Pending → Paid → Shipped → Delivered are rejected.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), currentUser(c), status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

// CancelOrder cancels an order, permitted from Pending and Paid only.
func (h *Handler) CancelOrder(c *gin.Context) {
	o, err := h.orders.Cancel(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}
