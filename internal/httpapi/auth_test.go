package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qms/walkin-service/internal/directory"
	"qms/walkin-service/internal/models"
)

type fakeResolver struct {
	sessions map[string]models.Session
	err      error
}

func (f fakeResolver) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	if f.err != nil {
		return models.Session{}, f.err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return models.Session{}, directory.ErrSessionNotFound
	}
	return session, nil
}

func TestAuthMiddleware(t *testing.T) {
	resolver := fakeResolver{sessions: map[string]models.Session{
		"staff-token": {SessionID: "staff-token", UserID: "u1", Role: models.RoleStaff},
		"admin-token": {SessionID: "admin-token", UserID: "u2", Role: models.RoleAdmin},
		"kiosk-token": {SessionID: "kiosk-token", UserID: "u3", Role: "kiosk"},
	}}
	var seen models.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = sessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := AuthMiddleware(resolver, next)

	cases := []struct {
		name   string
		method string
		path   string
		header string
		status int
	}{
		{"public read", http.MethodGet, "/api/queue", "", http.StatusOK},
		{"public check-in", http.MethodPost, "/api/queue", "", http.StatusOK},
		{"public realtime", http.MethodPost, "/realtime/123/abc/xhr_send", "", http.StatusOK},
		{"missing session", http.MethodDelete, "/api/queue/e1", "", http.StatusUnauthorized},
		{"unknown session", http.MethodDelete, "/api/queue/e1", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", http.MethodPut, "/api/queue/e1/status", "Bearer kiosk-token", http.StatusForbidden},
		{"staff", http.MethodPut, "/api/queue/e1/status", "Bearer staff-token", http.StatusOK},
		{"admin", http.MethodPost, "/api/queue/refresh", "bearer admin-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/queue/e1", nil)
	req.Header.Set("X-Session-ID", "staff-token")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen.UserID != "u1" {
		t.Fatalf("expected session in context, got %+v", seen)
	}
}

func TestAuthMiddlewareResolverFailure(t *testing.T) {
	h := AuthMiddleware(fakeResolver{err: errors.New("db down")}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodDelete, "/api/queue/e1", nil)
	req.Header.Set("Authorization", "Bearer any")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "internal_error") {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := AuthMiddleware(nil, next)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/queue/e1", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected passthrough, got %d", resp.Code)
	}
}
