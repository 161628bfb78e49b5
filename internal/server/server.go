package server

import (
	"time"

	"kalm/internal/config"
	"kalm/internal/handlers"
	"kalm/internal/middleware"
	"kalm/internal/repositories"
	"kalm/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options are the dependencies the HTTP server is built from.
type Options struct {
	Config *config.Config
	DB     *gorm.DB
	Log    logrus.FieldLogger

	// Events may be nil, in which case domain events are not published.
	Events services.EventPublisher

	// LimiterStorage backs the login rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

// Server is the assembled Fiber application.
type Server struct {
	App  *fiber.App
	Auth *services.AuthService
}

// New wires repositories, services and handlers into a Fiber app.
func New(opts Options) *Server {
	cfg := opts.Config
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	// --- Repositories ---
	accountRepo := repositories.NewGORMAccountRepository(opts.DB)
	productRepo := repositories.NewGORMProductRepository(opts.DB)
	brandRepo := repositories.NewGORMBrandRepository(opts.DB)
	postRepo := repositories.NewGORMPostRepository(opts.DB)

	// --- Services ---
	authService := services.NewAuthService(accountRepo, cfg.JWTSecret, cfg.JWTTTL, opts.Events, log)
	accountService := services.NewAccountService(accountRepo, authService, opts.Events, log)
	productService := services.NewProductService(productRepo, brandRepo, opts.Events, log)
	brandService := services.NewBrandService(brandRepo, opts.Events, log)
	postService := services.NewPostService(postRepo, accountRepo, opts.Events, log)

	// --- Handlers ---
	accountHandler := handlers.NewAccountHandler(authService, accountService, loginLimiter(cfg, opts.LimiterStorage))
	productHandler := handlers.NewProductHandler(productService)
	brandHandler := handlers.NewBrandHandler(brandService)
	postHandler := handlers.NewPostHandler(postService)

	app := fiber.New(fiber.Config{
		AppName:      "kalm",
		ErrorHandler: handlers.ErrorHandler(log),
		UnescapePath: true,
	})

	// --- Middleware ---
	metrics := middleware.NewMetrics()
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.Identify(authService, log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", metrics.Handler())

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	accountHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)
	brandHandler.RegisterRoutes(apiV1)
	postHandler.RegisterRoutes(apiV1)

	app.Use(handlers.NotFound)

	return &Server{App: app, Auth: authService}
}

// loginLimiter throttles login attempts per client IP. A zero limit disables it.
func loginLimiter(cfg *config.Config, storage fiber.Storage) fiber.Handler {
	if cfg.LoginRateLimit <= 0 {
		return nil
	}
	return limiter.New(limiter.Config{
		Max:        cfg.LoginRateLimit,
		Expiration: cfg.LoginRateWindow,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "login:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"msg": "too many login attempts, try again later",
			})
		},
	})
}
