package api

import (
	"log/slog"
	"net/http"

	"github.com/example/vexokart/internal/api/middleware"
	"github.com/example/vexokart/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Handlers   *Handlers
	JWTService *auth.JWTService
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := cfg.Handlers

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// Courier routes: the label token is the credential.
	r.GET("/scan/:token", h.LookupScan)
	r.POST("/scan/:token", h.ApplyScan)

	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware(cfg.JWTService))

	shopper := authed.Group("/orders")
	shopper.Use(middleware.RequireRole(auth.RoleShopper, auth.RoleAdmin))
	shopper.GET("", h.GetMyOrders)
	shopper.POST("", h.PlaceOrder)
	shopper.GET("/:id", h.GetOrder)
	shopper.POST("/:id/payment", h.RecordPayment)

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRole(auth.RoleAdmin))
	admin.GET("/orders", h.AdminListOrders)
	admin.PATCH("/orders/:id/status", h.AdminSetStatus)
	admin.POST("/orders/:id/label", h.AdminMintLabel)
	admin.GET("/notifications", h.ListNotifications)
	admin.GET("/notification-settings", h.GetNotificationSettings)
	admin.PUT("/notification-settings", h.UpdateNotificationSettings)

	vendor := authed.Group("/vendor")
	vendor.Use(middleware.RequireRole(auth.RoleVendor))
	vendor.GET("/orders", h.VendorListOrders)
	vendor.PATCH("/orders/:id/status", h.VendorSetStatus)
	vendor.POST("/orders/:id/label", h.VendorMintLabel)

	return r
}
