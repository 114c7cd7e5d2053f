// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"aurabattle/internal/config"
	"aurabattle/internal/middleware"
	"aurabattle/internal/observability"
	"aurabattle/internal/seed"
	"aurabattle/internal/storage"
	"aurabattle/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config          *config.Config
	storage         storage.Store
	users           *store.UserStore
	groups          *store.GroupStore
	app             *fiber.App
	promMiddleware  *fiberprometheus.FiberPrometheus
	tracingShutdown func(context.Context) error
}

// NewServer creates a new server instance, opening the configured storage backend.
func NewServer(cfg *config.Config) (*Server, error) {
	var (
		st  storage.Store
		err error
	)
	switch cfg.StorageBackend {
	case config.BackendRedis:
		st, err = storage.NewRedis(cfg.RedisURL)
	case config.BackendPostgres:
		st, err = storage.NewPostgres(cfg)
	default:
		st, err = storage.NewSQLite(cfg.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}

	srv, err := NewServerWithDeps(cfg, st)
	if err != nil {
		return nil, err
	}

	if cfg.SeedDemo {
		if err := seed.Demo(context.Background(), srv.users, srv.groups); err != nil {
			return nil, fmt.Errorf("demo seeding failed: %w", err)
		}
	}

	return srv, nil
}

// NewServerWithDeps creates a Server using an already-initialized storage
// backend. Use this in tests or when a bootstrap layer establishes storage.
func NewServerWithDeps(cfg *config.Config, st storage.Store) (*Server, error) {
	middleware.InitMiddleware(cfg)

	users := store.NewUserStore(st)
	groups := store.NewGroupStore(st, users)

	// Initialize Prometheus metrics
	prom := middleware.InitMetrics("aurabattle-api")

	tracingShutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "aurabattle-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		SamplerRatio:   cfg.TracingSampler,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing initialization failed: %w", err)
	}

	return &Server{
		config:          cfg,
		storage:         st,
		users:           users,
		groups:          groups,
		promMiddleware:  prom,
		tracingShutdown: tracingShutdown,
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID and user ID
	app.Use(middleware.ContextMiddleware())

	// Distributed tracing spans per request
	app.Use(middleware.TracingMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Aura Battle Metrics Dashboard",
	}))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", s.Register)
	auth.Post("/login", s.Login)
	auth.Post("/logout", middleware.AuthRequired, s.Logout)
	auth.Get("/me", middleware.AuthRequired, s.GetCurrentUser)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	// User routes
	users := protected.Group("/users")
	users.Get("/", s.GetAllUsers)
	users.Put("/me", s.UpdateMyProfile)

	// Group routes
	groups := protected.Group("/groups")
	groups.Post("/", s.CreateGroup)
	groups.Get("/", s.GetMyGroups)
	groups.Post("/join", s.JoinGroup)
	groups.Get("/:id", s.GetGroup)
	groups.Get("/:id/members", s.GetGroupMembers)
	groups.Get("/:id/events", s.GetGroupEvents)
	groups.Post("/:id/aura", s.AddAuraPoints)
}

// Listen builds the Fiber app, mounts middleware and routes, and serves
// until Shutdown is called.
func (s *Server) Listen() error {
	app := fiber.New(fiber.Config{
		AppName:   "Aura Battle API",
		BodyLimit: 1 * 1024 * 1024, // 1MB limit
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app

	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully stops the HTTP server and closes storage.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.storage != nil {
		if cerr := s.storage.Close(); cerr != nil {
			log.Printf("error closing storage: %v", cerr)
		}
	}

	if s.tracingShutdown != nil {
		if terr := s.tracingShutdown(ctx); terr != nil {
			log.Printf("error shutting down tracer provider: %v", terr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck verifies the durable storage is reachable.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	storageStatus := "healthy"
	if _, _, err := s.storage.Get(ctx, "aura:health"); err != nil {
		storageStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storageStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"storage": storageStatus,
		},
		"time": time.Now(),
	})
}
