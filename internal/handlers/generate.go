package handlers

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"labrecord/internal/models"
	"labrecord/internal/render"
	"labrecord/internal/services"

	"github.com/gofiber/fiber/v2"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Filenames keep only letters and digits; everything else becomes an underscore.
var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]`)

// GenerateHandler renders the table of contents sheet as DOCX or PDF
type GenerateHandler struct {
	store  services.RecordStore
	assets *services.AssetService
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(store services.RecordStore, assets *services.AssetService) *GenerateHandler {
	return &GenerateHandler{
		store:  store,
		assets: assets,
	}
}

// DOCX renders a Word document
// POST /api/generate/docx
func (h *GenerateHandler) DOCX(c *fiber.Ctx) error {
	return h.generate(c, "docx")
}

// PDF renders a PDF document
// POST /api/generate/pdf
func (h *GenerateHandler) PDF(c *fiber.Ctx) error {
	return h.generate(c, "pdf")
}

func (h *GenerateHandler) generate(c *fiber.Ctx, format string) error {
	var req models.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.CourseTitle == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Course title is required",
		})
	}

	input := render.Input{
		CourseTitle:    req.CourseTitle,
		StudentName:    req.StudentName,
		RegisterNumber: req.RegisterNumber,
		Experiments:    req.Experiments,
		Logo:           h.assets.Logo(c.Context()),
		QRCodes:        h.assets.QRCodes(req.Experiments),
	}

	var (
		data []byte
		err  error
	)
	if format == "docx" {
		data, err = render.DOCX(input)
	} else {
		data, err = render.PDF(input)
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", services.ErrRenderFailure, err)
		if m := services.GetMetrics(); m != nil {
			m.RenderErrors.WithLabelValues(format).Inc()
		}
		log.Printf("❌ Failed to render %s document: %v", format, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate document",
		})
	}

	// Record the download for signed-in users. The document is already
	// rendered, so this must never delay or fail the response.
	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		go h.recordDownload(userID, req)
	}

	if m := services.GetMetrics(); m != nil {
		m.DocumentsGenerated.WithLabelValues(format).Inc()
	}

	contentType := docxContentType
	if format == "pdf" {
		contentType = "application/pdf"
	}

	filename := filenameSanitizer.ReplaceAllString(req.CourseTitle, "_") + "_Lab_Record." + format
	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

// recordDownload upserts the record with the download counter bumped.
func (h *GenerateHandler) recordDownload(userID string, req models.GenerateRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := h.store.Upsert(ctx, userID, req.CourseTitle, req.StudentName, req.RegisterNumber, req.Experiments, true); err != nil {
		log.Printf("⚠️ Failed to record download for user %s: %v", userID, err)
	}
}
