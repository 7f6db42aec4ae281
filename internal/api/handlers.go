package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/vexokart/internal/api/middleware"
	"github.com/example/vexokart/internal/auth"
	"github.com/example/vexokart/internal/console"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/notification"
	"github.com/example/vexokart/internal/scan"
	"github.com/gin-gonic/gin"
)

const defaultNotificationPage = 50

// OrderService is what the shopper routes need from order.Service.
type OrderService interface {
	CreateOrder(ctx context.Context, in order.CreateOrderInput) (*order.Order, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrders(ctx context.Context) ([]*order.Order, error)
	RecordPayment(ctx context.Context, id, paymentID string) error
}

type Handlers struct {
	orders   OrderService
	console  *console.Console
	scans    *scan.Gateway
	settings *notification.SettingsStore
	logs     notification.LogStore
}

func NewHandlers(orders OrderService, c *console.Console, scans *scan.Gateway, settings *notification.SettingsStore, logs notification.LogStore) *Handlers {
	return &Handlers{
		orders:   orders,
		console:  c,
		scans:    scans,
		settings: settings,
		logs:     logs,
	}
}

// Shopper Handlers

type placeOrderRequest struct {
	Items           []order.LineItem `json:"items" binding:"required"`
	ShippingAddress order.Address    `json:"shipping_address"`
	PaymentMethod   string           `json:"payment_method"`
}

func (h *Handlers) PlaceOrder(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.orders.CreateOrder(c.Request.Context(), order.CreateOrderInput{
		UserEmail:       claims.Email,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handlers) GetMyOrders(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	all, err := h.orders.ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	mine := make([]*order.Order, 0)
	for _, o := range all {
		if ownsOrder(claims, o) {
			mine = append(mine, o)
		}
	}
	c.JSON(http.StatusOK, mine)
}

func (h *Handlers) GetOrder(c *gin.Context) {
	o, ok := h.loadOwnedOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, o)
}

type paymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

func (h *Handlers) RecordPayment(c *gin.Context) {
	o, ok := h.loadOwnedOrder(c)
	if !ok {
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.orders.RecordPayment(ctx, o.ID, req.PaymentID); err != nil {
		respondError(c, err)
		return
	}
	updated, err := h.orders.GetOrder(ctx, o.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// loadOwnedOrder writes the error response itself when it returns false.
func (h *Handlers) loadOwnedOrder(c *gin.Context) (*order.Order, bool) {
	claims, _ := middleware.GetClaims(c)

	o, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !ownsOrder(claims, o) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you cannot view another user's order"})
		return nil, false
	}
	return o, true
}

func ownsOrder(claims *auth.Claims, o *order.Order) bool {
	if claims == nil {
		return false
	}
	return claims.Role == auth.RoleAdmin || strings.EqualFold(claims.Email, o.UserEmail)
}

// Courier Handlers

type scanRequest struct {
	Action    scan.Action `json:"action" binding:"required"`
	Note      string      `json:"note"`
	ScannedBy string      `json:"scanned_by"`
}

type scanLookupResponse struct {
	scan.Result
	Order *scan.View `json:"order,omitempty"`
}

func (h *Handlers) LookupScan(c *gin.Context) {
	view, result, err := h.scans.Lookup(c.Request.Context(), c.Param("token"))
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	c.JSON(status, scanLookupResponse{Result: result, Order: view})
}

func (h *Handlers) ApplyScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, scan.Result{Success: false, Message: "Choose an action."})
		return
	}

	result, err := h.scans.Apply(c.Request.Context(), c.Param("token"), req.Action, req.Note, req.ScannedBy)
	if err != nil {
		c.JSON(statusFor(err), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Admin Handlers

type statusRequest struct {
	Status      string `json:"status" binding:"required"`
	CourierName string `json:"courier_name"`
	TrackingID  string `json:"tracking_id"`
}

func (r statusRequest) parse() (order.Status, order.Details, error) {
	status, err := order.ParseStatus(r.Status)
	if err != nil {
		return "", order.Details{}, err
	}
	return status, order.Details{CourierName: r.CourierName, TrackingID: r.TrackingID}, nil
}

func (h *Handlers) AdminListOrders(c *gin.Context) {
	orders, err := h.console.Orders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handlers) AdminSetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, details, err := req.parse()
	if err != nil {
		respondError(c, err)
		return
	}

	o, err := h.console.AdminSetStatus(c.Request.Context(), c.Param("id"), status, details)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handlers) AdminMintLabel(c *gin.Context) {
	l, err := h.console.MintLabel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *Handlers) ListNotifications(c *gin.Context) {
	limit := defaultNotificationPage
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	logs, err := h.logs.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handlers) GetNotificationSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Get(c.Request.Context()).Redacted())
}

func (h *Handlers) UpdateNotificationSettings(c *gin.Context) {
	var req notification.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	next := req.KeepSecrets(h.settings.Get(ctx))
	if err := h.settings.Set(ctx, next); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, next.Redacted())
}

// Vendor Handlers

func vendorID(c *gin.Context) (string, bool) {
	claims, ok := middleware.GetClaims(c)
	if !ok || claims.VendorID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "vendor account required"})
		return "", false
	}
	return claims.VendorID, true
}

func (h *Handlers) VendorListOrders(c *gin.Context) {
	vid, ok := vendorID(c)
	if !ok {
		return
	}

	orders, err := h.console.VendorOrders(c.Request.Context(), vid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handlers) VendorSetStatus(c *gin.Context) {
	vid, ok := vendorID(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, details, err := req.parse()
	if err != nil {
		respondError(c, err)
		return
	}

	o, err := h.console.VendorSetStatus(c.Request.Context(), vid, c.Param("id"), status, details)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handlers) VendorMintLabel(c *gin.Context) {
	vid, ok := vendorID(c)
	if !ok {
		return
	}

	l, err := h.console.VendorMintLabel(c.Request.Context(), vid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}
