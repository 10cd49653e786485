package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/middlewares"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	idempotencyHeader = "Idempotency-Key"
	orderTokenHeader  = "X-Order-Token"
)

type Options struct {
	JWTSecret      string
	CronSecret     string
	RateLimitRPS   float64
	RateLimitBurst int
	// ResultURL is where the payment callback redirects the browser. Empty
	// means the callback answers with JSON.
	ResultURL string
}

type Handler struct {
	orders     *services.OrderService
	payments   *services.PaymentService
	reconciler *services.ExpiryReconciler
	opts       Options
}

func NewHandler(orders *services.OrderService, payments *services.PaymentService, reconciler *services.ExpiryReconciler, opts Options) *Handler {
	return &Handler{orders: orders, payments: payments, reconciler: reconciler, opts: opts}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api", middlewares.OptionalAuth(h.opts.JWTSecret))
	api.POST("/orders", middlewares.RateLimit(h.opts.RateLimitRPS, h.opts.RateLimitBurst), h.CreateOrder)
	api.GET("/orders/:id", h.GetOrder)
	api.POST("/orders/:id/cancel", h.CancelOrder)
	api.POST("/orders/:id/pay", h.RequestPayment)
	api.GET("/payments/callback", middlewares.RateLimit(h.opts.RateLimitRPS, h.opts.RateLimitBurst), h.PaymentCallback)

	admin := r.Group("/admin", middlewares.OptionalAuth(h.opts.JWTSecret), middlewares.RequireAdmin())
	admin.POST("/orders/:id/refund", h.RefundOrder)
	admin.PUT("/orders/:id/status", h.UpdateStatus)

	cron := r.Group("/cron", middlewares.CronAuth(h.opts.CronSecret))
	cron.POST("/expire-orders", h.ExpireOrders)
	cron.GET("/expire-orders", h.ExpiryStats)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: domain.KindValidation})
		return
	}

	items := make([]services.CreateOrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, services.CreateOrderItem{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		Actor:          middlewares.ActorFrom(c),
		Items:          items,
		CouponCode:     req.CouponCode,
		CustomerMobile: req.CustomerMobile,
		CustomerEmail:  req.CustomerEmail,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(idempotencyHeader)),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id, caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(c.Request.Context(), id, caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) RequestPayment(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	start, err := h.payments.RequestPayment(c.Request.Context(), id, caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PaymentResponse{
		OrderID:    start.OrderID,
		Authority:  start.Authority,
		PaymentURL: start.PaymentURL,
		Amount:     start.Amount,
	})
}

// PaymentCallback is where the gateway sends the customer back.
func (h *Handler) PaymentCallback(c *gin.Context) {
	result, err := h.payments.VerifyPayment(c.Request.Context(), c.Query("Authority"), c.Query("Status"))

	if h.opts.ResultURL != "" {
		q := url.Values{}
		if err != nil {
			q.Set("status", services.PaymentResultFailed)
			q.Set("error", string(domain.KindOf(err)))
		} else {
			q.Set("order", result.OrderNumber)
			q.Set("status", result.Status)
			if result.RefID != "" {
				q.Set("refId", result.RefID)
			}
		}
		sep := "?"
		if strings.Contains(h.opts.ResultURL, "?") {
			sep = "&"
		}
		c.Redirect(http.StatusFound, h.opts.ResultURL+sep+q.Encode())
		return
	}

	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) RefundOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: domain.KindValidation})
		return
	}
	notify := true
	if req.NotifyCustomer != nil {
		notify = *req.NotifyCustomer
	}

	order, err := h.orders.RefundOrder(c.Request.Context(), id, services.RefundInput{
		Reason:         req.Reason,
		RefundAmount:   req.RefundAmount,
		NotifyCustomer: notify,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: domain.KindValidation})
		return
	}
	next := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))

	order, err := h.orders.UpdateStatus(c.Request.Context(), id, next)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ExpireOrders(c *gin.Context) {
	summary, err := h.reconciler.Run(c.Request.Context(), time.Now().UTC())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ExpiryStats(c *gin.Context) {
	stats, err := h.reconciler.Stats(c.Request.Context(), time.Now().UTC())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "order-service",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// caller is the resolved actor plus the guest order token, taken from the
// X-Order-Token header or the token query parameter.
func caller(c *gin.Context) domain.Actor {
	actor := middlewares.ActorFrom(c)
	actor.OrderToken = strings.TrimSpace(c.GetHeader(orderTokenHeader))
	if actor.OrderToken == "" {
		actor.OrderToken = strings.TrimSpace(c.Query("token"))
	}
	return actor
}

func orderID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid order id", Kind: domain.KindValidation})
		return 0, false
	}
	return id, true
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Ctx(c.Request.Context()).Error().Err(err).Str("kind", string(kind)).Msg("request failed")
		if kind == domain.KindInternal {
			msg = "internal server error"
		}
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Error: msg, Kind: kind})
}
