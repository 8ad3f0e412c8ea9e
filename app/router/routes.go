// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/future-messages/app/dto"
	"github.com/amirphl/future-messages/app/handlers"
	"github.com/amirphl/future-messages/app/middleware"
	"github.com/amirphl/future-messages/docs"
	"github.com/amirphl/future-messages/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Config carries the handlers and HTTP settings the router wires together
type Config struct {
	AuthHandler    handlers.AuthHandlerInterface
	MessageHandler handlers.MessageHandlerInterface
	HealthHandler  *handlers.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware

	WorkerAPIKeys    []string
	AllowedOrigins   []string
	AllowCredentials bool
	EnableDocs       bool
	EnableMetrics    bool
	AccessLog        bool

	BodyLimit     int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	RateLimit     int
	AuthRateLimit int
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app *fiber.App
	cfg Config
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg Config) Router {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 1 * 1024 * 1024
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2000
	}
	if cfg.AuthRateLimit <= 0 {
		cfg.AuthRateLimit = 20
	}

	app := fiber.New(fiber.Config{
		AppName:      "Future Messages API",
		ServerHeader: "future-messages",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app: app,
		cfg: cfg,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.EnableMetrics {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	if r.cfg.EnableDocs {
		r.app.Get("/swagger/doc.json", r.serveSwaggerJSON)
		r.app.Get("/swagger", r.serveSwaggerUI)
		log.Println("API documentation enabled")
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", r.cfg.HealthHandler.Health)

	api.Use(r.rateLimiter(r.cfg.RateLimit, func(c fiber.Ctx) bool {
		return c.Path() == healthPath
	}))

	r.registerRoutes(api)

	// Root aliases for form-based clients
	r.registerRoutes(r.app)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// registerRoutes mounts the public, protected and worker routes under g
func (r *FiberRouter) registerRoutes(g fiber.Router) {
	authLimiter := r.rateLimiter(r.cfg.AuthRateLimit, nil)
	authenticate := r.cfg.AuthMiddleware.Authenticate()

	g.Post("/register", authLimiter, r.cfg.AuthHandler.Register)
	g.Post("/login", authLimiter, r.cfg.AuthHandler.Login)
	g.Post("/logout", r.cfg.AuthHandler.Logout)
	g.Get("/me", authenticate, r.cfg.AuthHandler.Me)

	g.Post("/messages", authenticate, r.cfg.MessageHandler.CreateMessage)
	g.Get("/messages", authenticate, r.cfg.MessageHandler.ListMessages)
	g.Get("/messages/export", authenticate, r.cfg.MessageHandler.ExportMessages)

	g.Post("/internal/messages/:message_id/status", middleware.RequireAPIKey(r.cfg.WorkerAPIKeys), r.cfg.MessageHandler.ReportStatus)
}

func (r *FiberRouter) rateLimiter(max int, next func(c fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: next,
	})
}

// SetupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https:; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"X-API-Key",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		AllowCredentials: r.cfg.AllowCredentials,
		MaxAge:           utils.CORSMaxAge,
	}))

	r.app.Use(middleware.Metrics())

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Only the generated API document is cacheable
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || c.Path() != "/swagger/doc.json"
		},
		Expiration:          30 * time.Minute,
		DisableCacheControl: false,
	}))

	if r.cfg.AccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath || c.Path() == "/metrics"
			},
		}))
	}
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Serve Swagger UI HTML page
func (r *FiberRouter) serveSwaggerUI(c fiber.Ctx) error {
	htmlContent := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Future Messages API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({ url: '/swagger/doc.json', dom_id: '#swagger-ui', deepLinking: true });
        };
    </script>
</body>
</html>`

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(htmlContent)
}

// Serve the registered swagger document
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(doc)
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	errCode := "INTERNAL_ERROR"
	message := "An internal server error occurred"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			errCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
			message = e.Message
		}
	}

	log.Printf("Error %d: %v", code, err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
