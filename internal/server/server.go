// Package server exposes the social graph and feeds over a JSON HTTP API.
package server

import (
	"context"
	"sync"
	"time"

	"peakshare/internal/config"
	"peakshare/internal/feed"
	"peakshare/internal/graph"
	"peakshare/internal/models"
	"peakshare/internal/observability"
	"peakshare/internal/resort"
	"peakshare/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	promOnce       sync.Once
	promMiddleware *fiberprometheus.FiberPrometheus
)

// initMetrics registers the HTTP collectors once per process.
func initMetrics(service string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promMiddleware = fiberprometheus.New(service)
	})
	return promMiddleware
}

// Deps are the collaborators a Server serves from. Store, Graph, Feed and
// Resorts are required; DB and Redis are only used for readiness checks.
type Deps struct {
	Store   *store.Store
	Graph   *graph.Query
	Feed    *feed.Composer
	Resorts *resort.Catalog
	DB      *gorm.DB
	Redis   *redis.Client
	Logger  *observability.Logger
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	store          *store.Store
	graph          *graph.Query
	feed           *feed.Composer
	resorts        *resort.Catalog
	db             *gorm.DB
	redis          *redis.Client
	log            *observability.Logger
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
}

// NewServer creates a server over deps.
func NewServer(cfg *config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = observability.GlobalLogger
	}
	s := &Server{
		config:         cfg,
		store:          deps.Store,
		graph:          deps.Graph,
		feed:           deps.Feed,
		resorts:        deps.Resorts,
		db:             deps.DB,
		redis:          deps.Redis,
		log:            log,
		promMiddleware: initMetrics("peakshare-api"),
	}
	s.app = s.newApp()
	return s
}

// App returns the configured fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "PeakShare API",
		// Params and headers end up as ids inside the store; they must not
		// alias fasthttp buffers that are reused by later requests.
		Immutable: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			s.log.ErrorContext(c.UserContext(), "unhandled request error", "error", err)
			return RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(StructuredLogger(s.log))

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, " + UserIDHeader,
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	users := api.Group("/users")
	users.Post("/", s.CreateUser)
	users.Get("/suggested", ActingUserRequired(), s.GetSuggestedUsers)
	users.Get("/:id", s.GetUser)
	users.Put("/:id", ActingUserRequired(), s.UpdateUser)
	users.Get("/:id/stats", s.GetUserStats)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Post("/:id/follow", ActingUserRequired(), s.FollowUser)
	users.Delete("/:id/follow", ActingUserRequired(), s.UnfollowUser)

	posts := api.Group("/posts")
	posts.Post("/", ActingUserRequired(), s.CreatePost)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", ActingUserRequired(), s.DeletePost)
	posts.Post("/:id/like", ActingUserRequired(), s.ToggleLike)
	posts.Post("/:id/comments", ActingUserRequired(), s.AddComment)
	posts.Delete("/:id/comments/:commentId", ActingUserRequired(), s.RemoveComment)

	feeds := api.Group("/feed")
	feeds.Get("/following", ActingUserRequired(), s.GetFollowingFeed)
	feeds.Get("/global", s.GetGlobalFeed)
	feeds.Get("/hashtags/:tag", s.GetHashtagFeed)

	api.Get("/hashtags/trending", s.GetTrendingHashtags)

	resorts := api.Group("/resorts")
	resorts.Get("/", s.ListResorts)
	resorts.Get("/:id", s.GetResort)
	resorts.Get("/:id/posts", s.GetResortPosts)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the configured backends. Backends that are not
// configured are reported as disabled and do not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := fiber.Map{
		"database": probe(s.db != nil, func() error {
			sqlDB, err := s.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		"redis": probe(s.redis != nil, func() error {
			return s.redis.Ping(ctx).Err()
		}),
	}

	status, overall := fiber.StatusOK, backendHealthy
	for _, v := range checks {
		if v == backendUnhealthy {
			status, overall = fiber.StatusServiceUnavailable, backendUnhealthy
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now(),
	})
}

const (
	backendHealthy   = "healthy"
	backendUnhealthy = "unhealthy"
	backendDisabled  = "disabled"
)

func probe(enabled bool, ping func() error) string {
	if !enabled {
		return backendDisabled
	}
	if err := ping(); err != nil {
		return backendUnhealthy
	}
	return backendHealthy
}

// Start listens on the configured port and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
