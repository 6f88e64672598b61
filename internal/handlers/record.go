package handlers

import (
	"errors"
	"log"

	"labrecord/internal/logging"
	"labrecord/internal/models"
	"labrecord/internal/services"

	"github.com/gofiber/fiber/v2"
)

// RecordHandler handles HTTP requests for saved document records
type RecordHandler struct {
	store services.RecordStore
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(store services.RecordStore) *RecordHandler {
	return &RecordHandler{
		store: store,
	}
}

// Save creates or updates the caller's record for a course title
// POST /api/records
func (h *RecordHandler) Save(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req models.SaveRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	id, err := h.store.Upsert(c.Context(), userID, req.CourseTitle, req.StudentName, req.RegisterNumber, req.Experiments, false)
	if err != nil {
		if errors.Is(err, services.ErrValidationFailure) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if errors.Is(err, services.ErrPermissionDenied) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Not authorized to save records",
			})
		}

		// Auto-saves are debounced background writes; transient store trouble
		// must not surface as an error toast mid-typing.
		if req.AutoSave {
			log.Printf("⚠️ Auto-save failed for user %s, will retry on next change: %v", userID, err)
			return c.Status(fiber.StatusAccepted).JSON(models.SaveRecordResponse{Saved: false})
		}

		log.Printf("❌ Failed to save record: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to save record",
		})
	}

	if m := services.GetMetrics(); m != nil {
		m.RecordSaves.Inc()
	}
	logging.WithUser(userID).Debug("record saved", "record_id", id, "auto_save", req.AutoSave)

	return c.Status(fiber.StatusOK).JSON(models.SaveRecordResponse{ID: id, Saved: true})
}

// List returns all of the caller's saved records, newest first
// GET /api/records
func (h *RecordHandler) List(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	records, err := h.store.ListByUser(c.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrPermissionDenied) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Not authorized to list records",
			})
		}
		log.Printf("❌ Failed to list records: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to list records",
		})
	}

	return c.JSON(models.RecordListResponse{
		Records:    records,
		TotalCount: len(records),
	})
}

// Delete removes one saved record by id
// DELETE /api/records/:id
func (h *RecordHandler) Delete(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	recordID := c.Params("id")
	if recordID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Record ID is required",
		})
	}

	if err := h.store.Remove(c.Context(), userID, recordID); err != nil {
		if errors.Is(err, services.ErrPermissionDenied) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Not authorized to delete records",
			})
		}
		log.Printf("❌ Failed to delete record %s: %v", recordID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to delete record",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// ProbeAccess checks whether the record store is reachable and the caller
// is authorized, so the frontend can decide whether to offer save/load
// GET /api/records/access
func (h *RecordHandler) ProbeAccess(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	accessible, err := h.store.ProbeAccess(c.Context(), userID)
	if err != nil {
		log.Printf("⚠️ Record store access probe failed: %v", err)
		return c.JSON(fiber.Map{"accessible": false})
	}

	return c.JSON(fiber.Map{"accessible": accessible})
}
