package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
	ws "github.com/krshsl/medspa/backend/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Server holds all server dependencies
type Server struct {
	config *Config
	repo   *repository.GORMRepository
	pool   *pgxpool.Pool
	redis  *redis.Client

	// ctx bounds background work: campaign sends, counter pruning and
	// limiter cleanup.
	ctx    context.Context
	cancel context.CancelFunc

	authService        *AuthService
	authEndpoints      *AuthEndpoints
	catalogEndpoints   *CatalogEndpoints
	cmsEndpoints       *CMSEndpoints
	blueprintEndpoints *BlueprintEndpoints
	leadEndpoints      *LeadEndpoints
	portalEndpoints    *PortalEndpoints
	adminEndpoints     *AdminEndpoints
	campaignSender     *CampaignSender
	uploadLimiter      *UploadLimiter
	pgCounter          *PostgresCounter
	wsHub              *ws.Hub
	upgrader           websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetDatabase sets the GORM repository.
func (s *Server) SetDatabase(repo *repository.GORMRepository) {
	s.repo = repo
}

// SetPool sets the pgx pool used for the rate-limit functions.
func (s *Server) SetPool(pool *pgxpool.Pool) {
	s.pool = pool
}

// SetRedis sets the optional Redis client.
func (s *Server) SetRedis(client *redis.Client) {
	s.redis = client
}

// InitializeServices builds every service from config. SetDatabase must be
// called first.
func (s *Server) InitializeServices() error {
	if s.repo == nil {
		return errors.New("database is not configured")
	}

	secret := s.config.JWT.Secret
	if secret == "" {
		if s.config.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		secret = devSecret()
		slog.Warn("JWT secret not configured, using a random secret; sessions will not survive restarts")
	}

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	ai, err := NewCompleter(s.ctx, s.config.AI)
	if err != nil {
		slog.Error("Failed to initialize AI provider", "error", err, "provider", s.config.AI.Provider)
	}
	if ai == nil {
		slog.Warn("AI provider not configured, blueprint tools will answer 503")
	} else {
		slog.Info("AI provider initialized", "provider", s.config.AI.Provider)
	}

	limiter := NewRateLimiter(s.rateLimitCounter(), s.config.RateLimit)
	s.uploadLimiter = NewUploadLimiter(s.config.RateLimit.LabUploadsHour)
	mailer := NewEmailService(s.config.Email, s.config.Business.Email)
	sms := NewSMSService(s.config.SMS)
	sanitizer := NewContentSanitizer()
	stream := NewStreamService(s.config.Stream)

	s.authService = NewAuthService(s.repo, secret, s.config.IsProduction())
	s.authEndpoints = NewAuthEndpoints(s.authService)

	s.catalogEndpoints = NewCatalogEndpoints(s.repo, NewCatalogService(s.repo))
	s.cmsEndpoints = NewCMSEndpoints(NewCMSService(s.repo, sanitizer))

	blueprints := NewBlueprintService(s.repo, ai, limiter, mailer, NewTurnstileVerifier(s.config.BotCheck), s.config)
	s.blueprintEndpoints = NewBlueprintEndpoints(blueprints, s.uploadLimiter)
	s.leadEndpoints = NewLeadEndpoints(NewLeadService(s.repo, limiter, mailer, s.wsHub, s.config.Business.Email))

	appointments := NewAppointmentService(s.repo, s.wsHub)
	consents := NewConsentService(s.repo, mailer, sms, s.wsHub, sanitizer, s.config.Business.SiteURL)
	videos := NewVideoService(s.repo, stream)
	s.campaignSender = NewCampaignSender(s.ctx, s.repo, sms, s.wsHub, s.config.SMS.CampaignDelay)
	campaigns := NewCampaignService(s.repo, sms, s.campaignSender)

	s.portalEndpoints = NewPortalEndpoints(s.repo, appointments, consents, videos)
	s.adminEndpoints = NewAdminEndpoints(s.repo, appointments, consents, campaigns, videos, sanitizer)

	slog.Info("Services initialized",
		"email_configured", s.config.Email.ResendAPIKey != "",
		"sms_configured", sms.Configured(),
		"turnstile_configured", s.config.BotCheck.TurnstileSecret != "",
	)
	return nil
}

// rateLimitCounter picks the counter backend. Without one the limiter lets
// everything through.
func (s *Server) rateLimitCounter() Counter {
	switch {
	case s.config.RateLimit.Backend == "redis" && s.redis != nil:
		slog.Info("Rate limiting with Redis")
		return NewRedisCounter(s.redis)
	case s.pool != nil:
		if s.config.RateLimit.Backend == "redis" {
			slog.Warn("Redis not configured, rate limiting with Postgres")
		}
		s.pgCounter = NewPostgresCounter(s.pool)
		return s.pgCounter
	default:
		slog.Warn("No rate limit backend available, rate limiting disabled")
		return nil
	}
}

func devSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "insecure-development-secret"
	}
	return hex.EncodeToString(b)
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(TrustedRealIP(ParseTrustedProxies(s.config.Server.TrustedProxies)))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		s.authEndpoints.RegisterRoutes(r)
		s.catalogEndpoints.RegisterRoutes(r)
		s.cmsEndpoints.RegisterPublicRoutes(r)
		s.blueprintEndpoints.RegisterRoutes(r)
		s.leadEndpoints.RegisterRoutes(r)

		r.Route("/portal", func(r chi.Router) {
			r.Use(s.authService.Middleware)
			s.portalEndpoints.RegisterRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authService.Middleware)
			r.Use(RequireRole(models.RoleAdmin))
			r.Get("/ws", s.adminFeedHandler)
			s.cmsEndpoints.RegisterAdminRoutes(r)
			s.adminEndpoints.RegisterRoutes(r)
		})
	})

	return r
}

// StartBackground resumes interrupted campaigns and starts housekeeping.
func (s *Server) StartBackground() {
	if err := s.campaignSender.Resume(s.ctx); err != nil {
		slog.Error("Failed to resume campaigns", "error", err)
	}
	if s.pgCounter != nil {
		s.pgCounter.StartPruning(s.ctx, time.Hour)
	}
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.uploadLimiter.Cleanup(2 * time.Hour)
			}
		}
	}()
}

// Shutdown stops background work and waits for campaign senders. Unsent
// messages stay pending for the next start.
func (s *Server) Shutdown() {
	s.cancel()
	if s.campaignSender != nil {
		s.campaignSender.Wait()
	}
	if s.wsHub != nil {
		s.wsHub.Stop()
	}
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.StartBackground()

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	s.Shutdown()

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.repo != nil {
		if sqlDB, err := s.repo.DB().DB(); err != nil {
			dbStatus, status = "down", "degraded"
		} else if err := sqlDB.PingContext(r.Context()); err != nil {
			dbStatus, status = "down", "degraded"
		} else {
			dbStatus = "up"
		}
	}

	body := map[string]interface{}{"status": status, "database": dbStatus}
	if s.wsHub != nil {
		body["admin_feed_clients"] = s.wsHub.ClientCount()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API v1", "version": "1.0.0"})
}

// adminFeedHandler upgrades an admin session to the live event feed.
func (s *Server) adminFeedHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("Admin feed connected", "user_id", user.ID)
	client := s.wsHub.RegisterClient(conn, user.ID)
	go client.WritePump()
	client.ReadPump()
}
