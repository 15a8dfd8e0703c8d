package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"commerce-backoffice/internal/models"
	"commerce-backoffice/internal/service"
	"commerce-backoffice/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService   *service.OrderService
	webhookService *service.WebhookService
	allowedOrigins []string
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService, webhookService *service.WebhookService, allowedOrigins []string) *Handler {
	return &Handler{
		orderService:   orderService,
		webhookService: webhookService,
		allowedOrigins: allowedOrigins,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		stores := v1.Group("/stores/:storeId")
		stores.Use(h.corsMiddleware())
		{
			stores.POST("/orders", h.createOrder)
			stores.OPTIONS("/orders", h.preflight)
			stores.GET("/orders/customer/:customerId", h.ordersByCustomer)
			stores.GET("/variants/:variantId/stock", h.variantStock)
		}

		v1.POST("/webhooks/payment", h.paymentWebhook)
	}
}

// corsMiddleware echoes the request origin when allow-listed, otherwise the
// first configured origin.
func (h *Handler) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		corsOrigin := ""
		if len(h.allowedOrigins) > 0 {
			corsOrigin = h.allowedOrigins[0]
		}
		for _, allowed := range h.allowedOrigins {
			if allowed == origin {
				corsOrigin = origin
				break
			}
		}

		c.Header("Access-Control-Allow-Origin", corsOrigin)
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Max-Age", "86400")

		c.Next()
	}
}

// preflight answers the cross-origin negotiation step
func (h *Handler) preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder handles order intake
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), c.Param("storeId"), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// paymentWebhook handles the provider's payment notification. The raw body
// is read before any parsing; the signature covers the exact bytes sent.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	signature := c.GetHeader("X-Razorpay-Signature")

	if err := h.webhookService.HandlePaymentNotification(c.Request.Context(), body, signature); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// ordersByCustomer lists a customer's orders newest first
func (h *Handler) ordersByCustomer(c *gin.Context) {
	orders, err := h.orderService.ListCustomerOrders(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	c.JSON(http.StatusOK, orders)
}

// variantStock reports a variant's current stock level
func (h *Handler) variantStock(c *gin.Context) {
	stock, err := h.orderService.VariantStock(c.Request.Context(), c.Param("storeId"), c.Param("variantId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stock": stock})
}

// writeError maps the error taxonomy onto HTTP statuses: 400 for anything
// the caller can fix or must not blindly retry, 404 for absent resources,
// 500 otherwise.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		stockErr      *service.InsufficientStockError
		authErr       *service.AuthenticationError
		payloadErr    *service.MalformedPayloadError
		notFoundErr   *service.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &stockErr),
		errors.As(err, &authErr),
		errors.As(err, &payloadErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
