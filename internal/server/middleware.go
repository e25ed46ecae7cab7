package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
)

// requestLogger logs one line per request with status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		ctx := logging.WithAttrs(r.Context(),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.Info(ctx, "request handled",
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// authenticate verifies the bearer token and stores the identity in the
// request context. Handlers behind it can assume identityFrom succeeds.
func authenticate(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				respondError(w, r, apperrors.New(apperrors.KindForbidden, "missing bearer token"))
				return
			}

			identity, err := tokens.Verify(raw, auth.TokenTypeAccess)
			if err != nil {
				respondError(w, r, apperrors.New(apperrors.KindForbidden, "invalid or expired token"))
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			ctx = logging.WithAttrs(ctx, slog.Uint64("user_id", identity.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// identityFrom reads the identity set by the authenticate middleware.
func identityFrom(r *http.Request) (auth.Identity, error) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return auth.Identity{}, apperrors.New(apperrors.KindForbidden, "not authenticated")
	}
	return identity, nil
}
