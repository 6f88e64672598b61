package handlers

import (
	"time"

	"labrecord/internal/database"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports service and database health
type HealthHandler struct {
	db        *database.MongoDB // nil when running on the in-memory store
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.MongoDB) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startedAt: time.Now(),
	}
}

// Health returns liveness plus a database reachability check
// GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	dbStatus := "memory"
	if h.db != nil {
		dbStatus = "connected"
		if err := h.db.Ping(c.Context()); err != nil {
			dbStatus = "degraded"
		}
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"database": dbStatus,
		"uptime":   time.Since(h.startedAt).Round(time.Second).String(),
	})
}
