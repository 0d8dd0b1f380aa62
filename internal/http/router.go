// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/englishschool-ru/go-school-backend/internal/config"
	"github.com/englishschool-ru/go-school-backend/internal/domain"
	"github.com/englishschool-ru/go-school-backend/internal/http/handlers"
	"github.com/englishschool-ru/go-school-backend/internal/http/middleware"
	"github.com/englishschool-ru/go-school-backend/internal/llm"
	"github.com/englishschool-ru/go-school-backend/internal/repo"
	"github.com/englishschool-ru/go-school-backend/internal/services"
	"github.com/englishschool-ru/go-school-backend/internal/session"
)

// contactRepoShim adapts the repository free functions to the
// services.ContactRepo interface expected by the ContactService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type contactRepoShim struct{}

// CreateContact proxies repo.CreateContact.
func (contactRepoShim) CreateContact(ctx context.Context, db *gorm.DB, c *domain.ContactSubmission) (*domain.ContactSubmission, error) {
	return repo.CreateContact(ctx, db, c)
}

// registrationRepoShim adapts the repository free functions to the
// services.RegistrationRepo interface.
type registrationRepoShim struct{}

// CreateRegistration proxies repo.CreateRegistration.
func (registrationRepoShim) CreateRegistration(ctx context.Context, db *gorm.DB, reg *domain.CourseRegistration) (*domain.CourseRegistration, error) {
	return repo.CreateRegistration(ctx, db, reg)
}

// GetRegistration proxies repo.GetRegistration.
func (registrationRepoShim) GetRegistration(ctx context.Context, db *gorm.DB, id uint) (*domain.CourseRegistration, error) {
	return repo.GetRegistration(ctx, db, id)
}

// CountRegistrations proxies repo.CountRegistrations (pagination support).
func (registrationRepoShim) CountRegistrations(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountRegistrations(ctx, db)
}

// ListRegistrationsPage proxies repo.ListRegistrationsPage (pagination support).
func (registrationRepoShim) ListRegistrationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.CourseRegistration, error) {
	return repo.ListRegistrationsPage(ctx, db, offset, limit)
}

// RegistrationsStats proxies repo.RegistrationsStats (ETag support).
func (registrationRepoShim) RegistrationsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.RegistrationsStats(ctx, db)
}

// idemRepoShim adapts the repository free functions to the
// services.IdempotencyRepo interface.
type idemRepoShim struct{}

// GetIdempotency proxies repo.GetIdempotency.
func (idemRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, clientID, endpoint, key string, now time.Time) (*domain.IdempotencyRecord, error) {
	return repo.GetIdempotency(ctx, db, clientID, endpoint, key, now)
}

// CreateIdempotency proxies repo.CreateIdempotency.
func (idemRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, clientID, endpoint, key string, registrationID uint, status int, ttl time.Duration) (*domain.IdempotencyRecord, error) {
	return repo.CreateIdempotency(ctx, db, clientID, endpoint, key, registrationID, status, ttl)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the public API under cfg.APIBasePath.
//
// completer may be nil; the chat endpoint then answers with a fixed fallback
// message instead of calling out.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Response compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per session/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store session.Store, completer llm.Completer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (contact payloads carry PII)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress JSON responses (the registrations listing benefits most)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, clientID, endpoint, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, clientID, endpoint, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per session/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept",
		"X-Session-ID", "If-None-Match",
		middleware.HeaderIdempotencyKey,
	}
	exposeHeaders := []string{
		"X-Request-ID", "X-Session-ID", "ETag",
		"Idempotency-Replayed", "Content-Length",
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/store/completer
	contactSvc := services.NewContactService(db, contactRepoShim{})
	regSvc := services.NewRegistrationService(db, registrationRepoShim{})
	idemSvc := services.NewIdempotencyService(db, idemRepoShim{}, cfg.IdempotencyTTL)
	consultSvc := services.NewConsultService(db, store, completer, regSvc)
	consultSvc.HistoryLimit = cfg.HistoryLimit

	contactH := handlers.NewContactHandler(contactSvc)
	chatH := handlers.NewChatHandler(consultSvc)
	regH := handlers.NewRegistrationHandler(regSvc, idemSvc)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/contact", contactH.Submit)
		api.POST("/chat", chatH.Chat)
		api.POST("/register", regH.Register)
		api.GET("/registrations", regH.ListRegistrations)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
