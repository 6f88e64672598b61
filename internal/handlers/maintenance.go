package handlers

import (
	"crypto/subtle"
	"log"
	"time"

	"labrecord/internal/logging"
	"labrecord/internal/services"

	"github.com/gofiber/fiber/v2"
)

// MaintenanceHandler exposes the expiry sweep over HTTP: an authenticated
// on-demand endpoint plus a secret-guarded endpoint for external cron services
type MaintenanceHandler struct {
	store      services.RecordStore
	cronSecret string
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(store services.RecordStore, cronSecret string) *MaintenanceHandler {
	return &MaintenanceHandler{
		store:      store,
		cronSecret: cronSecret,
	}
}

// Cleanup deletes all expired records on demand
// POST /api/maintenance/cleanup
func (h *MaintenanceHandler) Cleanup(c *fiber.Ctx) error {
	return h.sweep(c, "manual")
}

// CronCleanup is the same sweep for external schedulers, authorized by the
// shared CRON_SECRET instead of a user token
// GET /api/cron/cleanup
func (h *MaintenanceHandler) CronCleanup(c *fiber.Ctx) error {
	if h.cronSecret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Cron endpoint not configured",
		})
	}

	expected := "Bearer " + h.cronSecret
	provided := c.Get("Authorization")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	return h.sweep(c, "cron")
}

func (h *MaintenanceHandler) sweep(c *fiber.Ctx, trigger string) error {
	now := time.Now().UTC()
	logger := logging.WithSweep(trigger)

	deleted, err := h.store.SweepExpired(c.Context(), now)
	if err != nil {
		if m := services.GetMetrics(); m != nil {
			m.SweepFailures.Inc()
		}
		logger.Error("expiry sweep failed", "deleted", deleted, "error", err)
		log.Printf("❌ Expiry sweep (%s) failed after %d deletions: %v", trigger, deleted, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"deleted": deleted,
			"error":   "Cleanup failed",
		})
	}

	if m := services.GetMetrics(); m != nil {
		m.RecordsSwept.Add(float64(deleted))
	}

	logger.Info("expiry sweep finished", "deleted", deleted)
	return c.JSON(fiber.Map{
		"success":   true,
		"deleted":   deleted,
		"timestamp": now.Format(time.RFC3339),
	})
}
