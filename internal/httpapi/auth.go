package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"qms/walkin-service/internal/directory"
	"qms/walkin-service/internal/models"
)

type authContextKey struct{}

// AuthMiddleware guards staff operations. Reads, check-in and the realtime
// feed stay public for kiosks and lobby displays. A nil resolver disables
// the check.
func AuthMiddleware(resolver directory.SessionResolver, next http.Handler) http.Handler {
	if resolver == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := resolver.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, directory.ErrSessionNotFound) {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if session.Role != models.RoleStaff && session.Role != models.RoleAdmin {
			writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "staff role required")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (models.Session, bool) {
	session, ok := ctx.Value(authContextKey{}).(models.Session)
	return session, ok
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch {
	case r.URL.Path == "/healthz", r.URL.Path == "/metrics", r.URL.Path == "/ws":
		return true
	case strings.HasPrefix(r.URL.Path, "/realtime/"):
		return true
	case r.URL.Path == "/api/queue" && r.Method == http.MethodPost:
		return true
	}
	return r.Method == http.MethodGet || r.Method == http.MethodOptions
}
