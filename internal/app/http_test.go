package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadlens/api/internal/store"
)

func newTestServer(fs *fakeStore) (*HTTPServer, *Service) {
	svc := newTestService(fs, newFakeSessions(), &fakeBus{})
	return NewHTTPServer(svc, "*"), svc
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if ok, _ := body["ok"].(bool); !ok {
		t.Error("expected ok=true")
	}
}

func TestOptionsSetsCORSHeaders(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/leads"},
		{http.MethodGet, "/api/activity"},
		{http.MethodPost, "/api/export"},
		{http.MethodGet, "/api/preferences"},
		{http.MethodGet, "/api/search"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestListLeadsWithSession(t *testing.T) {
	fs := &fakeStore{
		listLeadsFn: func(ctx context.Context, tenantID string, filter store.LeadFilter) ([]store.Lead, error) {
			if tenantID != "t1" {
				t.Errorf("unexpected tenant: %s", tenantID)
			}
			if filter.Status != "contacted" {
				t.Errorf("expected status filter, got %q", filter.Status)
			}
			return []store.Lead{{ID: "lead-1", CompanyName: "Acme", Status: "contacted", CreatedAt: time.Now()}}, nil
		},
	}
	server, svc := newTestServer(fs)
	session := testSession(svc, t)

	req := httptest.NewRequest(http.MethodGet, "/api/leads?status=contacted", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Leads []map[string]any `json:"leads"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Leads) != 1 || body.Leads[0]["companyName"] != "Acme" {
		t.Errorf("unexpected payload: %+v", body.Leads)
	}
}

func TestCreateLeadForbiddenForViewer(t *testing.T) {
	fs := &fakeStore{
		getProfileByIDFn: func(ctx context.Context, userID string) (store.UserProfile, error) {
			return store.UserProfile{ID: userID, TenantID: "t1", DisplayName: "Viewer", Role: "viewer"}, nil
		},
	}
	server, svc := newTestServer(fs)
	session, err := svc.issueSession(context.Background(), store.UserProfile{
		ID: "u2", TenantID: "t1", DisplayName: "Viewer", Role: "viewer",
	})
	if err != nil {
		t.Fatalf("issueSession failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"companyName":"Acme"}`))
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCreateLeadValidation(t *testing.T) {
	server, svc := newTestServer(&fakeStore{})
	session := testSession(svc, t)

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"companyName":"  "}`))
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["code"] != "VALIDATION_ERROR" {
		t.Errorf("unexpected error code: %v", body["code"])
	}
}

func TestSessionEndpointWithoutToken(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if authed, _ := body["authenticated"].(bool); authed {
		t.Error("expected authenticated=false")
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	server, svc := newTestServer(&fakeStore{})
	session := testSession(svc, t)

	req := httptest.NewRequest(http.MethodGet, "/api/nonsense", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
