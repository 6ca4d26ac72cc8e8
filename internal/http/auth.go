package httpapi

import (
	"context"
	"net/http"
	"strings"

	"sac-backend-go/internal/services"
)

type contextKey string

const ctxIdentity contextKey = "identity"

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// WithAuth admits requests carrying a valid access token. Missing, malformed
// and verification-purpose tokens are all rejected as InvalidToken.
func WithAuth(tokens services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				WriteError(w, services.ErrInvalidToken.Status, services.ErrInvalidToken.Message)
				return
			}
			claims, err := tokens.Verify(raw, services.PurposeAccess)
			if err != nil {
				WriteError(w, services.ErrInvalidToken.Status, services.ErrInvalidToken.Message)
				return
			}
			ctx := context.WithValue(r.Context(), ctxIdentity, claims.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CurrentIdentity(r *http.Request) (services.Identity, bool) {
	identity, ok := r.Context().Value(ctxIdentity).(services.Identity)
	return identity, ok
}

// RequireAdmin must run after WithAuth.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := CurrentIdentity(r)
		if !ok {
			WriteError(w, services.ErrInvalidToken.Status, services.ErrInvalidToken.Message)
			return
		}
		if err := s.Gate.RequireAdmin(r.Context(), identity.ID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
