package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/services"
)

// HealthHandler reports service health
type HealthHandler struct {
	Service *services.HealthService
}

// Health handles GET /api/health
// @Summary Health check
// @Description Database, storage and upstream API status. Unhealthy answers 503.
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	result := h.Service.HealthCheck(c.UserContext())
	status := fiber.StatusOK
	if result.Status == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
