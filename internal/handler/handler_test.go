package handler

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"influencer-attribution-api/internal/cache"
	"influencer-attribution-api/internal/database"
	"influencer-attribution-api/internal/features"
	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/referral"
	"influencer-attribution-api/internal/service"
)

func setupTestHandler(t *testing.T) (*Handler, func()) {
	dbPath := filepath.Join(t.TempDir(), "test_handler.db")
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	svc := service.NewService(db, cache.NewInMemoryCache(), nil, nil, service.Options{
		Generator:    referral.NewGenerator("https://example.com/register", "", ""),
		CacheTTL:     time.Minute,
		MaxRangeDays: 366,
	})
	h := NewHandler(svc)

	cleanup := func() {
		db.Close()
	}

	return h, cleanup
}

func setupRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	if rr.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", rr.Body.String())
	}
}

func TestCaptureVisit(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)

	rr := doJSON(t, r, "POST", "/visits", models.CaptureVisitRequest{
		VisitorID: "visitor-1",
		Query:     "utm_source=Instagram&utm_content=John",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, r, "POST", "/visits", models.CaptureVisitRequest{
		VisitorID: "visitor-1",
		Query:     "utm_source=YouTube&utm_content=Asha",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for a repeat visit, got %d", rr.Code)
	}

	rr = doJSON(t, r, "GET", "/visits/visitor-1/attribution", nil)
	var resp models.CaptureVisitResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.FirstTouch == nil || resp.FirstTouch.Content != "John" {
		t.Errorf("Expected first touch John, got %+v", resp.FirstTouch)
	}

	rr = doJSON(t, r, "DELETE", "/visits/visitor-1/attribution", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}

	rr = doJSON(t, r, "GET", "/visits/visitor-1/attribution", nil)
	if !strings.Contains(rr.Body.String(), `"first_touch":null`) {
		t.Errorf("Expected null first touch after clear, got %s", rr.Body.String())
	}
}

func TestCaptureVisit_BadRequests(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty body", nil},
		{"invalid json", "{not json"},
		{"invalid visitor id", models.CaptureVisitRequest{VisitorID: "has spaces", Query: "utm_source=x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, r, "POST", "/visits", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}
			if decodeError(t, rr) == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

func TestRequestBodyTooLarge(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "small.db")
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer db.Close()

	h := NewHandlerWithOptions(service.NewService(db, nil, nil, nil, service.Options{}), NewHandlerOptions{MaxBodySize: 16})
	r := setupRouter(h)

	rr := doJSON(t, r, "POST", "/visits", models.CaptureVisitRequest{VisitorID: "visitor-1", Query: strings.Repeat("a", 64)})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rr.Code)
	}
}

func TestSaveRegistrationStep(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)

	doJSON(t, r, "POST", "/visits", models.CaptureVisitRequest{
		VisitorID: "visitor-1",
		Query:     "utm_source=Instagram&utm_medium=referral&utm_content=John",
	})

	body := `{"visitor_id":"visitor-1","phone":"9876543210","step":"step1","utm_source":"WhatsApp"}`
	rr := doJSON(t, r, "POST", "/registrations/steps", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var lead models.RegistrationEvent
	if err := json.NewDecoder(rr.Body).Decode(&lead); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if lead.Attribution.Source != "WhatsApp" || lead.Attribution.Content != "John" {
		t.Errorf("Expected explicit source over first touch, got %+v", lead.Attribution)
	}

	rr = doJSON(t, r, "POST", "/registrations/steps", `{"phone":"9876543210","step":"nope"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown step, got %d", rr.Code)
	}
}

func TestImportAndListLeads(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)

	rr := doJSON(t, r, "POST", "/leads/import", models.ImportLeadsRequest{Leads: []models.LeadRecord{
		{Phone: "9876543210", UTMContent: "John", ApplicationStatus: "registered", CreatedAt: "2024-06-01T10:00:00Z"},
		{Phone: "9876543211", UTMContent: "Asha", ApplicationStatus: "completed", CreatedAt: "2024-06-02T10:00:00Z"},
	}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.ImportLeadsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Imported != 2 {
		t.Errorf("Expected 2 imported, got %d", resp.Imported)
	}

	rr = doJSON(t, r, "GET", "/leads", nil)
	var leads []models.RegistrationEvent
	if err := json.NewDecoder(rr.Body).Decode(&leads); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(leads) != 2 {
		t.Errorf("Expected 2 leads, got %d", len(leads))
	}

	rr = doJSON(t, r, "POST", "/leads/import", models.ImportLeadsRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty import, got %d", rr.Code)
	}
}

func TestReferralLinks(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)

	rr := doJSON(t, r, "POST", "/referral-links", models.CreateLinkRequest{
		InfluencerName: "John Doe",
		Platform:       models.PlatformInstagram,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for a preview, got %d: %s", rr.Code, rr.Body.String())
	}
	var preview models.CreateLinkResponse
	json.NewDecoder(rr.Body).Decode(&preview)
	if preview.ID != "" {
		t.Errorf("Expected no id for a preview, got %s", preview.ID)
	}
	want := "https://example.com/register?utm_campaign=guide_xperts&utm_content=John+Doe&utm_medium=referral&utm_source=Instagram"
	if preview.UTMLink != want {
		t.Errorf("Expected %s, got %s", want, preview.UTMLink)
	}

	rr = doJSON(t, r, "POST", "/referral-links", models.CreateLinkRequest{
		InfluencerName: "John Doe",
		Platform:       models.PlatformInstagram,
		Save:           true,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	var saved models.CreateLinkResponse
	json.NewDecoder(rr.Body).Decode(&saved)
	if saved.ID == "" {
		t.Fatal("Expected an id for a saved link")
	}

	rr = doJSON(t, r, "GET", "/referral-links", nil)
	var links []models.ReferralLink
	if err := json.NewDecoder(rr.Body).Decode(&links); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(links) != 1 || links[0].ID != saved.ID {
		t.Errorf("Expected the saved link, got %+v", links)
	}

	rr = doJSON(t, r, "DELETE", "/referral-links/"+saved.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}

	rr = doJSON(t, r, "DELETE", "/referral-links/"+saved.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}

	rr = doJSON(t, r, "POST", "/referral-links", models.CreateLinkRequest{Platform: "MySpace", InfluencerName: "x"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown platform, got %d", rr.Code)
	}
}

func seedLeads(t *testing.T, r http.Handler) {
	t.Helper()
	rr := doJSON(t, r, "POST", "/leads/import", models.ImportLeadsRequest{Leads: []models.LeadRecord{
		{Phone: "9000000001", UTMSource: "Instagram", UTMContent: "John", ApplicationStatus: "registered", SelectedSlot: "MONDAY_11AM", SlotDate: "2024-06-10", CreatedAt: "2024-06-01T06:30:00Z"},
		{Phone: "9000000002", UTMSource: "Instagram", UTMContent: "john", ApplicationStatus: "completed", CreatedAt: "2024-06-03T06:30:00Z"},
		{Phone: "9000000003", UTMSource: "YouTube", UTMContent: "Asha", ApplicationStatus: "in_progress", SelectedSlot: "MONDAY_11AM", SlotDate: "2024-06-10", CreatedAt: "2024-06-02T06:30:00Z"},
	}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed failed: %d %s", rr.Code, rr.Body.String())
	}
}

func TestInfluencerAnalytics(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)
	seedLeads(t, r)

	rr := doJSON(t, r, "GET", "/analytics/influencers?sort=registrations", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var rows []models.InfluencerAnalyticsRow
	if err := json.NewDecoder(rr.Body).Decode(&rows); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(rows) != 2 || rows[0].TotalRegistrations != 2 {
		t.Errorf("Expected John first with 2 registrations, got %+v", rows)
	}

	rr = doJSON(t, r, "GET", "/analytics/influencers?linked=true", nil)
	rows = nil
	json.NewDecoder(rr.Body).Decode(&rows)
	if len(rows) != 0 {
		t.Errorf("Expected no linked influencers, got %+v", rows)
	}

	tests := []struct {
		name  string
		query string
	}{
		{"non-iso date", "?from=01-06-2024"},
		{"bad sort", "?sort=name"},
		{"bad linked flag", "?linked=maybe"},
		{"range too long", "?from=2023-01-01&to=2024-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, r, "GET", "/analytics/influencers"+tt.query, nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestInfluencerAnalyticsCSV(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)
	seedLeads(t, r)

	rr := doJSON(t, r, "GET", "/analytics/influencers.csv", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Expected text/csv, got %s", ct)
	}

	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "Influencer,Platform,Total Registrations,Latest Registration" {
		t.Errorf("Unexpected header %v", records[0])
	}
}

func TestTrendAndBreakdown(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)
	seedLeads(t, r)

	rr := doJSON(t, r, "GET", "/analytics/trend?from=2024-06-01&to=2024-06-03", nil)
	var points []models.TrendPoint
	if err := json.NewDecoder(rr.Body).Decode(&points); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("Expected 3 days, got %+v", points)
	}

	rr = doJSON(t, r, "GET", "/analytics/trend?influencer=JOHN", nil)
	points = nil
	json.NewDecoder(rr.Body).Decode(&points)
	total := 0
	for _, p := range points {
		total += p.Count
	}
	if total != 2 {
		t.Errorf("Expected 2 registrations for John, got %d", total)
	}

	rr = doJSON(t, r, "GET", "/analytics/breakdown?dimension=source", nil)
	var breakdown []models.BreakdownRow
	if err := json.NewDecoder(rr.Body).Decode(&breakdown); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(breakdown) != 2 || breakdown[0].Value != "Instagram" || breakdown[0].Count != 2 {
		t.Errorf("Unexpected breakdown %+v", breakdown)
	}

	rr = doJSON(t, r, "GET", "/analytics/breakdown?dimension=term", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestSlotEndpoints(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	r := setupRouter(h)
	seedLeads(t, r)

	rr := doJSON(t, r, "PUT", "/slots/recurring", models.RecurringSlot{SlotID: "MONDAY_11AM", Enabled: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, r, "PUT", "/slots/recurring", models.RecurringSlot{SlotID: "FUNDAY_11AM", Enabled: true})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown slot, got %d", rr.Code)
	}

	rr = doJSON(t, r, "PUT", "/slots/overrides", models.SlotOverride{Date: "2024-06-10", SlotID: "MONDAY_11AM", Enabled: false})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, r, "GET", "/slots/overrides?from=2024-06-01&to=2024-06-30", nil)
	var overrides []models.SlotOverride
	json.NewDecoder(rr.Body).Decode(&overrides)
	if len(overrides) != 1 {
		t.Errorf("Expected 1 override, got %+v", overrides)
	}

	rr = doJSON(t, r, "GET", "/slots/bookings?from=2024-06-10&to=2024-06-10", nil)
	var bookings []models.SlotBookingCount
	json.NewDecoder(rr.Body).Decode(&bookings)
	if len(bookings) != 1 || bookings[0].Count != 1 {
		t.Errorf("Expected 1 confirmed booking, got %+v", bookings)
	}

	rr = doJSON(t, r, "GET", "/slots/schedule?from=2024-06-10&to=2024-06-10", nil)
	var schedule []models.SlotAvailability
	json.NewDecoder(rr.Body).Decode(&schedule)
	if len(schedule) != 3 {
		t.Fatalf("Expected 3 Monday slots, got %+v", schedule)
	}
	for _, s := range schedule {
		if s.SlotID == "MONDAY_11AM" && (s.Enabled || !s.Overridden || s.Booked != 1) {
			t.Errorf("Expected override to disable the slot, got %+v", s)
		}
	}

	rr = doJSON(t, r, "DELETE", "/slots/overrides/2024-06-10/MONDAY_11AM", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	rr = doJSON(t, r, "DELETE", "/slots/overrides/2024-06-10/MONDAY_11AM", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestFeatureFlags(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "features.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer db.Close()

	flags := features.NewManager()
	flags.Register(features.AnalyticsCache, true, "cache rollups")
	flags.Register(features.EventHooks, false, "publish events")

	svc := service.NewService(db, cache.NewInMemoryCache(), nil, flags, service.Options{})
	router := setupRouter(NewHandler(svc))

	rr := doJSON(t, router, http.MethodGet, "/features", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var list []features.FeatureFlag
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 2 || list[0].Name != features.AnalyticsCache || !list[0].Enabled {
		t.Errorf("unexpected flag list %+v", list)
	}

	rr = doJSON(t, router, http.MethodPut, "/features/event_hooks", map[string]bool{"enabled": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !flags.IsEnabled(features.EventHooks) {
		t.Error("expected event_hooks to be enabled")
	}

	rr = doJSON(t, router, http.MethodPut, "/features/unknown", map[string]bool{"enabled": true})
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown flag, got %d", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPut, "/features/event_hooks", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without enabled, got %d", rr.Code)
	}
}

func TestCreateLink_LowercasePlatform(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	router := setupRouter(h)

	rr := doJSON(t, router, http.MethodPost, "/referral-links", map[string]interface{}{
		"influencerName": "John",
		"platform":       "instagram",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 preview, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.CreateLinkResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if !strings.Contains(resp.UTMLink, "utm_source=Instagram") {
		t.Errorf("expected canonical platform in link, got %s", resp.UTMLink)
	}
}
