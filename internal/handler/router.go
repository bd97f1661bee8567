package handler

import "github.com/gin-gonic/gin"

// Routes mounts the API surface under /api. Auth endpoints and catalog reads
// are public; everything else requires a bearer token.
func (h *Handler) Routes(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)

	authed := api.Group("", h.Authenticate())

	authed.GET("/auth/me", h.Me)

	authed.POST("/products", h.CreateProduct)
	authed.PUT("/products/:id", h.UpdateProduct)
	authed.DELETE("/products/:id", h.DeleteProduct)

	authed.GET("/cart", h.GetCart)
	authed.POST("/cart/add", h.AddToCart)
	authed.PUT("/cart/update/:productId", h.UpdateCartItem)
	authed.POST("/cart/remove", h.RemoveFromCart)
	authed.DELETE("/cart/clear", h.ClearCart)

	authed.GET("/wishlist", h.GetWishlist)
	authed.POST("/wishlist/add", h.AddToWishlist)
	authed.DELETE("/wishlist/remove/:productId", h.RemoveFromWishlist)

	authed.POST("/payment/create-order", h.CreatePaymentOrder)
	authed.POST("/payment/verify", h.VerifyPayment)
	authed.POST("/payment/failure", h.PaymentFailure)
	authed.GET("/payment/:paymentId", h.GetPayment)

	authed.GET("/orders", h.ListOrders)
	authed.POST("/orders/create", h.CreateOrder)
	authed.GET("/orders/:id", h.GetOrder)
	authed.PUT("/orders/:id/status", h.UpdateOrderStatus)
	authed.PUT("/orders/:id/cancel", h.CancelOrder)
}
