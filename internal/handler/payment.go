package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openkiosk/storefront/internal/domain/checkout"
	"github.com/openkiosk/storefront/internal/domain/order"
)

// CreatePaymentOrder snapshots the cart and registers a payment intent with
// the provider. The total is always computed server-side; any client-supplied
// amount is ignored.
func (h *Handler) CreatePaymentOrder(c *gin.Context) {
	intent, err := h.checkout.CreateIntent(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId":  intent.ID,
		"amount":   intent.Amount,
		"currency": intent.Currency,
		"keyId":    intent.KeyID,
	})
}

type addressPayload struct {
	FullName string `json:"fullName"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	City     string `json:"city"`
	State    string `json:"state"`
	PostCode string `json:"postCode"`
	Country  string `json:"country"`
}

func (a addressPayload) toDomain() order.Address {
	return order.Address{
		FullName: a.FullName,
		Line1:    a.Line1,
		Line2:    a.Line2,
		City:     a.City,
		State:    a.State,
		PostCode: a.PostCode,
		Country:  a.Country,
	}
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	OrderData         struct {
		ShippingAddress addressPayload `json:"shippingAddress"`
	} `json:"orderData"`
}

// VerifyPayment handles the provider callback: on a valid signature it
// atomically persists a Paid order and clears the cart. A forged signature
// leaves the cart untouched.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing payment callback parameters"})
		return
	}

	o, err := h.checkout.VerifyAndPlace(c.Request.Context(), currentUser(c), checkout.Callback{
		ProviderOrderID:   req.RazorpayOrderID,
		ProviderPaymentID: req.RazorpayPaymentID,
		Signature:         req.RazorpaySignature,
	}, req.OrderData.ShippingAddress.toDomain())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": toOrderResponse(o)})
}

type paymentFailureRequest struct {
	RazorpayOrderID string         `json:"razorpay_order_id"`
	Error           map[string]any `json:"error"`
}

// PaymentFailure records a failed payment attempt for audit. It always
// responds 200: failure reporting must not itself fail the request.
func (h *Handler) PaymentFailure(c *gin.Context) {
	var req paymentFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"recorded": false})
		return
	}

	h.checkout.RecordFailure(c.Request.Context(), currentUser(c), req.RazorpayOrderID, req.Error)
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

// GetPayment proxies the provider's raw payment record.
func (h *Handler) GetPayment(c *gin.Context) {
	raw, err := h.gateway.FetchPayment(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
