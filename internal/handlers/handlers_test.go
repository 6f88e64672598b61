package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"labrecord/internal/middleware"
	"labrecord/internal/models"
	"labrecord/internal/services"
	"labrecord/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

const testCronSecret = "test-cron-secret"

func setupTestApp(t *testing.T) (*fiber.App, *services.MemoryRecordStore, *auth.LocalJWTAuth) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "testing")

	jwtAuth, err := auth.NewLocalJWTAuth("test-jwt-secret", time.Minute)
	if err != nil {
		t.Fatalf("Failed to create JWT auth: %v", err)
	}

	store := services.NewMemoryRecordStore(15)
	assets := services.NewAssetService("")

	recordHandler := NewRecordHandler(store)
	generateHandler := NewGenerateHandler(store, assets)
	maintenanceHandler := NewMaintenanceHandler(store, testCronSecret)

	app := fiber.New()
	api := app.Group("/api")

	generate := api.Group("/generate", middleware.OptionalLocalAuthMiddleware(jwtAuth))
	generate.Post("/docx", generateHandler.DOCX)
	generate.Post("/pdf", generateHandler.PDF)

	records := api.Group("/records", middleware.LocalAuthMiddleware(jwtAuth))
	records.Post("/", recordHandler.Save)
	records.Get("/", recordHandler.List)
	records.Get("/access", recordHandler.ProbeAccess)
	records.Delete("/:id", recordHandler.Delete)

	api.Post("/maintenance/cleanup", middleware.LocalAuthMiddleware(jwtAuth), maintenanceHandler.Cleanup)
	api.Get("/cron/cleanup", maintenanceHandler.CronCleanup)

	return app, store, jwtAuth
}

func bearerFor(t *testing.T, jwtAuth *auth.LocalJWTAuth, userID string) string {
	t.Helper()
	token, err := jwtAuth.GenerateAccessToken(userID, userID+"@example.com", "user")
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return "Bearer " + token
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

func TestSaveAndListRecords(t *testing.T) {
	app, _, jwtAuth := setupTestApp(t)
	authz := bearerFor(t, jwtAuth, "user-1")

	req := httptest.NewRequest("POST", "/api/records/", jsonBody(t, models.SaveRecordRequest{
		CourseTitle:    "Operating Systems Lab",
		StudentName:    "Alice",
		RegisterNumber: "RA2211003010001",
		Experiments:    []models.Experiment{{Title: "Process Scheduling", GithubLink: "https://github.com/alice/os-lab"}},
	}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authz)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var saved models.SaveRecordResponse
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !saved.Saved || saved.ID == "" {
		t.Errorf("Expected saved record with id, got %+v", saved)
	}

	listReq := httptest.NewRequest("GET", "/api/records/", nil)
	listReq.Header.Set("Authorization", authz)
	listResp, err := app.Test(listReq)
	if err != nil {
		t.Fatalf("List request failed: %v", err)
	}

	var listing models.RecordListResponse
	if err := json.NewDecoder(listResp.Body).Decode(&listing); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	if listing.TotalCount != 1 || len(listing.Records) != 1 {
		t.Fatalf("Expected one record, got %+v", listing)
	}
	if listing.Records[0].CourseTitle != "Operating Systems Lab" {
		t.Errorf("Unexpected course title %q", listing.Records[0].CourseTitle)
	}
}

func TestSaveRejectsMissingCourseTitle(t *testing.T) {
	app, _, jwtAuth := setupTestApp(t)

	req := httptest.NewRequest("POST", "/api/records/", jsonBody(t, models.SaveRecordRequest{
		StudentName: "Alice",
	}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, jwtAuth, "user-1"))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestRecordsRequireAuth(t *testing.T) {
	app, _, _ := setupTestApp(t)

	for _, route := range []struct {
		method string
		path   string
	}{
		{"POST", "/api/records/"},
		{"GET", "/api/records/"},
		{"GET", "/api/records/access"},
		{"DELETE", "/api/records/some-id"},
		{"POST", "/api/maintenance/cleanup"},
	} {
		req := httptest.NewRequest(route.method, route.path, strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", route.method, route.path, resp.StatusCode)
		}
	}
}

func TestDeleteRecord(t *testing.T) {
	app, store, jwtAuth := setupTestApp(t)
	authz := bearerFor(t, jwtAuth, "user-1")

	id, err := store.Upsert(context.Background(), "user-1", "OS Lab", "Alice", "REG1", nil, false)
	if err != nil {
		t.Fatalf("Seed upsert failed: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/api/records/"+id, nil)
	req.Header.Set("Authorization", authz)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if store.Len() != 0 {
		t.Error("Record was not deleted")
	}

	// Deleting the same id again still succeeds.
	again := httptest.NewRequest("DELETE", "/api/records/"+id, nil)
	again.Header.Set("Authorization", authz)
	resp, err = app.Test(again)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected idempotent delete to return 200, got %d", resp.StatusCode)
	}
}

func TestProbeAccess(t *testing.T) {
	app, _, jwtAuth := setupTestApp(t)

	req := httptest.NewRequest("GET", "/api/records/access", nil)
	req.Header.Set("Authorization", bearerFor(t, jwtAuth, "user-1"))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !body["accessible"] {
		t.Error("Expected accessible=true from the in-memory store")
	}
}

func TestGeneratePDFHeaders(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("POST", "/api/generate/pdf", jsonBody(t, models.GenerateRequest{
		CourseTitle: "OS & Networks Lab",
		StudentName: "Alice",
		Experiments: []models.Experiment{{ID: "exp-1", Title: "Sockets", GithubLink: "https://github.com/alice/net-lab"}},
	}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Unexpected content type %q", ct)
	}
	wantDisposition := `attachment; filename="OS___Networks_Lab_Lab_Record.pdf"`
	if cd := resp.Header.Get("Content-Disposition"); cd != wantDisposition {
		t.Errorf("Content-Disposition = %q, want %q", cd, wantDisposition)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("Body is not a PDF")
	}
}

func TestGenerateDOCXHeaders(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("POST", "/api/generate/docx", jsonBody(t, models.GenerateRequest{
		CourseTitle: "DBMS Lab",
		Experiments: []models.Experiment{{ID: "exp-1", Title: "Joins", GithubLink: "https://github.com/alice/dbms-lab"}},
	}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != docxContentType {
		t.Errorf("Unexpected content type %q", ct)
	}
	wantDisposition := `attachment; filename="DBMS_Lab_Lab_Record.docx"`
	if cd := resp.Header.Get("Content-Disposition"); cd != wantDisposition {
		t.Errorf("Content-Disposition = %q, want %q", cd, wantDisposition)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	// DOCX is a zip container.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("Body is not a zip archive")
	}
}

func TestGenerateRequiresCourseTitle(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("POST", "/api/generate/pdf", jsonBody(t, models.GenerateRequest{}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestGenerateWorksForAnonymousCallers(t *testing.T) {
	app, store, _ := setupTestApp(t)

	req := httptest.NewRequest("POST", "/api/generate/pdf", jsonBody(t, models.GenerateRequest{
		CourseTitle: "OS Lab",
	}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if store.Len() != 0 {
		t.Error("Anonymous downloads must not create records")
	}
}

func TestRecordDownloadBumpsCounter(t *testing.T) {
	store := services.NewMemoryRecordStore(15)
	handler := NewGenerateHandler(store, services.NewAssetService(""))

	req := models.GenerateRequest{CourseTitle: "OS Lab", StudentName: "Alice"}
	handler.recordDownload("user-1", req)
	handler.recordDownload("user-1", req)

	records, err := store.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected one record, got %d", len(records))
	}
	if records[0].DownloadCount != 2 {
		t.Errorf("Expected download count 2, got %d", records[0].DownloadCount)
	}
}

func TestCronCleanupAuth(t *testing.T) {
	app, store, _ := setupTestApp(t)

	// Seed an already-expired record.
	store.SetClock(func() time.Time { return time.Now().UTC().Add(-16 * 24 * time.Hour) })
	if _, err := store.Upsert(context.Background(), "user-1", "Stale Lab", "Alice", "REG1", nil, false); err != nil {
		t.Fatalf("Seed upsert failed: %v", err)
	}
	store.SetClock(time.Now)

	testCases := []struct {
		name       string
		authz      string
		wantStatus int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong secret", "Bearer wrong", fiber.StatusUnauthorized},
		{"not bearer", testCronSecret, fiber.StatusUnauthorized},
		{"correct secret", "Bearer " + testCronSecret, fiber.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/cron/cleanup", nil)
			if tc.authz != "" {
				req.Header.Set("Authorization", tc.authz)
			}

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("Expected %d, got %d", tc.wantStatus, resp.StatusCode)
			}

			if tc.wantStatus == fiber.StatusOK {
				var body struct {
					Success bool `json:"success"`
					Deleted int  `json:"deleted"`
				}
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if !body.Success || body.Deleted != 1 {
					t.Errorf("Expected success with 1 deletion, got %+v", body)
				}
			}
		})
	}
}

func TestCronCleanupDisabledWithoutSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "testing")

	store := services.NewMemoryRecordStore(15)
	handler := NewMaintenanceHandler(store, "")

	app := fiber.New()
	app.Get("/api/cron/cleanup", handler.CronCleanup)

	req := httptest.NewRequest("GET", "/api/cron/cleanup", nil)
	req.Header.Set("Authorization", "Bearer ")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503 when CRON_SECRET is unset, got %d", resp.StatusCode)
	}
}

func TestManualCleanup(t *testing.T) {
	app, store, jwtAuth := setupTestApp(t)

	store.SetClock(func() time.Time { return time.Now().UTC().Add(-20 * 24 * time.Hour) })
	if _, err := store.Upsert(context.Background(), "user-1", "Stale Lab", "Alice", "REG1", nil, false); err != nil {
		t.Fatalf("Seed upsert failed: %v", err)
	}
	store.SetClock(time.Now)

	req := httptest.NewRequest("POST", "/api/maintenance/cleanup", nil)
	req.Header.Set("Authorization", bearerFor(t, jwtAuth, "user-1"))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Success bool `json:"success"`
		Deleted int  `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !body.Success || body.Deleted != 1 {
		t.Errorf("Expected success with 1 deletion, got %+v", body)
	}
	if store.Len() != 0 {
		t.Error("Expired record should be gone")
	}
}
