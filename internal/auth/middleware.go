package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"oran-rapps/internal/observability/logging"
)

// Middleware guards the rApp API with bearer JWTs.
type Middleware struct {
	verifier *Verifier
	policy   Policy
	logger   *zap.SugaredLogger
}

// NewMiddleware constructs an auth middleware. A nil logger discards denials.
func NewMiddleware(verifier *Verifier, policy Policy, logger *zap.SugaredLogger) *Middleware {
	return &Middleware{verifier: verifier, policy: policy, logger: logging.OrNop(logger)}
}

// Wrap applies authentication and role checks to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		required, ok := m.policy.RequiredRole(r)
		if !ok || m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.verifier.Verify(bearerToken(r))
		if err != nil {
			m.logger.Debugw("request unauthenticated", "path", r.URL.Path, "err", err)
			deny(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		role := Role(claims.Role)
		if !RoleAtLeast(role, required) {
			m.logger.Infow("request forbidden", "path", r.URL.Path, "method", r.Method,
				"subject", claims.Subject, "role", role, "required", required)
			deny(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), role, claims.Subject)))
	})
}

func deny(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
