package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/models/reports"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"bitbucket.org/mmdatafocus/dealer_backend/workflow"
)

const defaultPort = "8080"

var tracer trace.Tracer = otel.Tracer("dealer-backend")

// vehicleNames is populated after the DB connects; handlers fall back to raw
// model ids while it is still loading.
var vehicleNames *models.VehicleNameCache

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

func newLedger() *workflow.Ledger {
	return workflow.NewLedger(config.GetDB(), config.GetLogger(), config.GetRedisLock())
}

func customerAnalyticsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		customerId, err := strconv.Atoi(c.Param("id"))
		if err != nil || customerId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "customerAnalytics")
		defer span.End()

		if err := utils.ValidateResourceId[models.Customer](ctx, customerId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check customer"})
			return
		}

		analytics, _, err := reports.BuildCustomerAnalytics(ctx, customerId)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "customerAnalyticsHandler", "building analytics", customerId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build analytics"})
			return
		}

		// Refresh the stored segment label; list filtering reads it. Best effort.
		if err := models.UpdateCustomerSegment(ctx, customerId, analytics.Segment); err != nil {
			config.LogError(config.GetLogger(), "server.go", "customerAnalyticsHandler", "updating customer segment", customerId, err)
		}

		c.JSON(http.StatusOK, analytics)
	}
}

func getCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		customerId, err := strconv.Atoi(c.Param("id"))
		if err != nil || customerId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
			return
		}

		customer, err := models.GetCustomer(c.Request.Context(), customerId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
				return
			}
			config.LogError(config.GetLogger(), "server.go", "getCustomerHandler", "fetching customer", customerId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch customer"})
			return
		}

		c.JSON(http.StatusOK, customer)
	}
}

func createCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var customer models.Customer
		if err := c.ShouldBindJSON(&customer); err != nil {
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		if err := models.CreateCustomer(c.Request.Context(), &customer); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, customer)
	}
}

func customerInstallmentPlansHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		customerId, err := strconv.Atoi(c.Param("id"))
		if err != nil || customerId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
			return
		}

		plans, err := models.GetInstallmentPlansForCustomer(c.Request.Context(), customerId)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "customerInstallmentPlansHandler", "fetching plans", customerId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch plans"})
			return
		}

		c.JSON(http.StatusOK, plans)
	}
}

func getDealerStaffHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		staffId, err := strconv.Atoi(c.Param("id"))
		if err != nil || staffId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid staff id"})
			return
		}

		staff, err := models.GetDealerStaff(c.Request.Context(), staffId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "staff not found"})
				return
			}
			config.LogError(config.GetLogger(), "server.go", "getDealerStaffHandler", "fetching staff", staffId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch staff"})
			return
		}

		c.JSON(http.StatusOK, staff)
	}
}

func customerAnalyticsExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		customerId, err := strconv.Atoi(c.Param("id"))
		if err != nil || customerId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
			return
		}

		f, err := reports.ExportCustomerAnalytics(c.Request.Context(), customerId, vehicleNames)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "customerAnalyticsExportHandler", "exporting analytics", customerId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export analytics"})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=customer-analytics.xlsx")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "server.go", "customerAnalyticsExportHandler", "writing workbook", customerId, err)
		}
	}
}

func orderAmountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, err := strconv.Atoi(c.Param("id"))
		if err != nil || orderId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}

		ctx := c.Request.Context()
		order, err := models.GetOrder(ctx, orderId)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			config.LogError(config.GetLogger(), "server.go", "orderAmountHandler", "fetching order", orderId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch order"})
			return
		}

		index, err := models.LoadPaymentIndex(ctx)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "orderAmountHandler", "loading payment index", orderId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment index"})
			return
		}

		resolved := workflow.ResolveOrders([]*models.Order{order}, index)
		c.JSON(http.StatusOK, resolved[0])
	}
}

type recordPaymentRequest struct {
	PlanId  int `json:"plan_id"`
	OrderId int `json:"order_id"`
	Months  int `json:"months" binding:"required"`
}

func recordPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.PlanId <= 0 && req.OrderId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id or order_id is required"})
			return
		}

		ref := workflow.PlanReference{PlanId: req.PlanId, OrderId: req.OrderId}
		plan, err := newLedger().RecordPayment(c.Request.Context(), ref, req.Months)
		if err != nil {
			switch {
			case errors.Is(err, workflow.ErrMissingPlanReference):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, workflow.ErrInvalidMonths):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, workflow.ErrAlreadyPaid), errors.Is(err, workflow.ErrPlanUpdateInFlight):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				config.LogError(config.GetLogger(), "server.go", "recordPaymentHandler", "recording payment", req, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record payment"})
			}
			return
		}

		c.JSON(http.StatusOK, plan)
	}
}

type outboxReplayRequest struct {
	Limit int `json:"limit"`
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}

		requeued, err := workflow.ReplayDeadRecords(c.Request.Context(), db, req.Limit)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "outboxReplayHandler", "replaying dead records", req, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "replay failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"requeued": requeued})
	}
}

func paymentIndexRebuildHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idx, err := models.RebuildPaymentIndex(c.Request.Context())
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "paymentIndexRebuildHandler", "rebuilding payment index", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rebuild failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": len(idx)})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/customers", createCustomerHandler())
	r.GET("/customers/:id", getCustomerHandler())
	r.GET("/customers/:id/analytics", customerAnalyticsHandler())
	r.GET("/customers/:id/analytics/export", customerAnalyticsExportHandler())
	r.GET("/customers/:id/installment-plans", customerInstallmentPlansHandler())
	r.GET("/dealer-staff/:id", getDealerStaffHandler())
	r.GET("/orders/:id/amount", orderAmountHandler())
	r.POST("/installment-plans/record-payment", recordPaymentHandler())
	// Ops tooling (admin only): replay outbox messages that were marked DEAD.
	r.POST("/internal/ops/outbox/replay", outboxReplayHandler())
	r.POST("/internal/ops/payment-index/rebuild", paymentIndexRebuildHandler())
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Warm the vehicle catalog; Lookup stays in not-loaded mode until this succeeds.
	vehicleNames = models.NewVehicleNameCache(db)
	go func() {
		if err := vehicleNames.Load(context.Background()); err != nil {
			config.LogError(logger, "server.go", "main", "loading vehicle name cache", nil, err)
		}
	}()

	// Start outbox dispatcher (publishes AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelDispatcher()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, reject the request.
	if count > rl.limit {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
