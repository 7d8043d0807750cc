package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/roaddamage/report-gateway/internal/handlers"
	"github.com/roaddamage/report-gateway/internal/services"
	"github.com/roaddamage/report-gateway/internal/storage"
)

func newTestRouter() http.Handler {
	store := storage.NewMongoStore(nil, 0)
	svc := services.NewReportService(store, nil, services.ServiceOptions{})
	cloud := services.NewCloudinaryClient("demo", "", "", 0)
	h := handlers.NewHandler(svc, services.NewStatsAggregator(store), cloud, map[string]handlers.HealthChecker{"store": store})
	return setupRouter(h, []string{"http://localhost:3000"})
}

func TestRouter_ListServesFallbackWhenStoreDown(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/visitor/reports", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"degraded":true`) {
		t.Errorf("body = %s, want degraded fallback", rec.Body.String())
	}
}

func TestRouter_ResizedPathWithSlashes(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/visitor/images/reports/abc123/resized?w=20&h=10", nil)
	newTestRouter().ServeHTTP(rec, req)

	want := "https://res.cloudinary.com/demo/image/upload/w_20,h_10/reports/abc123"
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), want) {
		t.Errorf("status = %d body = %s, want %s", rec.Code, rec.Body.String(), want)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"http://localhost:3000", "http://localhost:3000"},
		{"https://evil.example", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/visitor/reports", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()

		newTestRouter().ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
			t.Errorf("origin %s: Allow-Origin = %q, want %q", tt.origin, got, tt.wantAllow)
		}
	}
}

func TestRouter_HealthUnhealthyWhenStoreDown(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

var _ services.ReportStore = (*storage.MongoStore)(nil)
var _ services.ReportStore = (*storage.PostgresStorage)(nil)
var _ services.MediaUploader = (*storage.MinIOStorage)(nil)
var _ services.MediaUploader = (*services.CloudinaryClient)(nil)
