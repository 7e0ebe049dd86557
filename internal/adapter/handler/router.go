package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
)

// Handlers groups the route handlers the router mounts.
type Handlers struct {
	Auth    *AuthHandler
	Product *ProductHandler
	Order   *OrderHandler
	Card    *CardHandler
	Webhook *WebhookHandler
}

// NewRouter wires the full HTTP surface. The webhook endpoint sits outside
// /api because the provider authenticates with its own signature scheme, not
// a bearer token.
func NewRouter(h Handlers, auth *service.AuthService, cfg config.AuthConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(), gin.Recovery())

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/webhooks/paypal/account-updater", h.Webhook.AccountUpdater)

	api := r.Group("/api")
	authRequired := AuthRequired(auth, cfg)

	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/auth/me", authRequired, h.Auth.Me)

	api.GET("/products", h.Product.List)
	api.GET("/products/categories", h.Product.Categories)
	api.GET("/products/:id", h.Product.Get)

	adminProducts := api.Group("/products", authRequired, AdminRequired())
	adminProducts.POST("", h.Product.Create)
	adminProducts.PUT("/:id", h.Product.Update)
	adminProducts.DELETE("/:id", h.Product.Delete)

	orders := api.Group("/orders", authRequired)
	orders.POST("", h.Order.Create)
	orders.GET("", h.Order.ListMine)
	orders.GET("/:id", h.Order.Get)
	orders.PUT("/:id/cancel", h.Order.Cancel)
	orders.GET("/:id/track", h.Order.Track)

	adminOrders := api.Group("/orders/admin", authRequired, AdminRequired())
	adminOrders.GET("/all", h.Order.AdminList)
	adminOrders.PUT("/:id/status", h.Order.AdminUpdateStatus)
	adminOrders.GET("/statistics", h.Order.AdminStatistics)

	cards := api.Group("/user/cards", authRequired)
	cards.GET("", h.Card.List)
	cards.POST("", h.Card.Add)
	cards.GET("/:id", h.Card.Get)
	cards.PUT("/:id", h.Card.Update)
	cards.PUT("/:id/default", h.Card.SetDefault)
	cards.DELETE("/:id", h.Card.Delete)

	return r
}
