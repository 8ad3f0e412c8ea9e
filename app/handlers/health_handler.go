package handlers

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/future-messages/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
)

const healthCheckTimeout = 2 * time.Second

// DBPinger is satisfied by *sql.DB
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness of the service and its backing stores
type HealthHandler struct {
	db      DBPinger
	redis   redis.Cmdable
	version string
}

// NewHealthHandler creates a health handler. redisClient may be nil when
// redis is disabled.
func NewHealthHandler(db DBPinger, redisClient redis.Cmdable, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, version: version}
}

// Health handles health check requests
// @Summary Health Check
// @Description Check the API and its database and cache connections
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse "Service is healthy"
// @Failure 503 {object} dto.APIResponse "A dependency is unavailable"
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthCheckTimeout)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			log.Printf("health: database ping failed: %v", err)
			checks["database"] = "down"
			healthy = false
		} else {
			checks["database"] = "up"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			log.Printf("health: redis ping failed: %v", err)
			checks["redis"] = "down"
			healthy = false
		} else {
			checks["redis"] = "up"
		}
	}

	data := fiber.Map{
		"status":    "ok",
		"timestamp": utils.UTCNow().Unix(),
		"version":   h.version,
		"service":   "future-messages-api",
		"checks":    checks,
	}

	if !healthy {
		data["status"] = "degraded"
		return errorResponse(c, fiber.StatusServiceUnavailable, "Service is degraded", "DEPENDENCY_UNAVAILABLE", data)
	}
	return successResponse(c, fiber.StatusOK, "Service is healthy", data)
}
