package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/handlers"
	"github.com/mmdatafocus/closing_backend/models"
	"github.com/mmdatafocus/closing_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// readyHandler answers /healthz immediately and 503 for everything else until the app is installed.
type readyHandler struct {
	app atomic.Pointer[http.Handler]
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	app := h.app.Load()
	if app == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	(*app).ServeHTTP(w, r)
}

func (h *readyHandler) install(app http.Handler) {
	h.app.Store(&app)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// correlationId reuses x-correlation-id when the caller sends one.
func correlationId() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	// In production only CORS_ALLOWED_ORIGINS (comma-separated) may call; elsewhere allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id")
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	return cors.New(corsConfig)
}

// newRouter wires middleware and routes over the connected dependencies.
func newRouter(logger *logrus.Logger, deps handlers.Deps) *gin.Engine {
	r := gin.New()
	r.Use(correlationId())
	r.Use(corsMiddleware())
	if config.RateLimitEnabled() && deps.Redis != nil {
		rateLimiter := NewRateLimiter(deps.Redis.Client(), config.RateLimitMaxRequests(), config.RateLimitWindow())
		r.Use(rateLimiter.RateLimitMiddleware)
	}
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	handlers.RegisterRoutes(r, deps)
	r.NoRoute(customNotFoundHandler)
	return r
}

func buildDeps(logger *logrus.Logger, db *gorm.DB, rdb *config.Redis, publisher *config.PubSubPublisher) handlers.Deps {
	opts := []models.ClosingReportOption{
		models.WithLogger(logger),
		models.WithReportCache(models.NewReportCache(rdb)),
	}
	if publisher != nil {
		opts = append(opts, models.WithEventPublisher(publisher))
	}
	return handlers.Deps{
		Reports: models.NewClosingReportService(db, opts...),
		Menus:   models.NewMenuService(db),
		Users:   models.NewUserService(db, rdb),
		Redis:   rdb,
	}
}

func main() {
	if err := run(); err != nil {
		config.GetLogger().WithFields(logrus.Fields{"field": "startup"}).Fatal(err.Error())
	}
}

// redisConnectTimeout bounds the optional redis connect so the gate always opens.
const redisConnectTimeout = 15 * time.Second

// run owns every resource it opens; main only exits after the deferred releases have run.
func run() error {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen before dependencies are ready; the gate answers 503 meanwhile.
	gate := &readyHandler{}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           gate,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
		}
	}()

	db, err := config.ConnectDatabaseWithRetry(sigCtx, config.DatabaseConfigFromEnv())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "database"}).Warn("close database: " + err.Error())
		}
	}()

	// DDL can block tables; SKIP_MIGRATIONS=true leaves migrations to a separate job.
	if !config.SkipMigrations() {
		if err := models.MigrateTable(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	redisCtx, cancelRedis := context.WithTimeout(sigCtx, redisConnectTimeout)
	rdb, err := config.ConnectRedisWithRetry(redisCtx)
	cancelRedis()
	if err != nil {
		// Sessions, the report cache and rate limiting are optional without redis.
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis unavailable; continuing without it: " + err.Error())
		rdb = nil
	}
	defer func() {
		if rdb != nil {
			_ = rdb.Close()
		}
	}()

	publisher, err := config.NewPubSubPublisher(sigCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("report events disabled: " + err.Error())
		publisher = nil
	}
	defer func() {
		if publisher != nil {
			_ = publisher.Close()
		}
	}()

	gate.install(newRouter(logger, buildDeps(logger, db, rdb, publisher)))
	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		return nil
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
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

// RateLimitMiddleware is a fixed window per client IP.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "RateLimit:" + c.ClientIP()
	ctx := c.Request.Context()

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		// Redis trouble should not take the API down with it.
		config.GetLogger().WithFields(logrus.Fields{"field": "rate_limit"}).Warn(err.Error())
		c.Next()
		return
	}
	if count == 1 {
		rl.client.Expire(ctx, key, rl.window)
	}

	if count > rl.limit {
		c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
		})
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
