package handlers

import (
	"rigshare/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck reports database and cache reachability.
func HealthCheck(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":   "ok",
		"database": "ok",
		"cache":    "ok",
	}
	code := fiber.StatusOK

	if db, err := repositories.DB.DB(); err != nil || db.Ping() != nil {
		status["database"] = "unreachable"
		status["status"] = "degraded"
		code = fiber.StatusServiceUnavailable
	}
	if repositories.CacheService == nil || repositories.CacheService.HealthCheck(c.Context()) != nil {
		status["cache"] = "unreachable"
		status["status"] = "degraded"
	}
	return c.Status(code).JSON(status)
}
