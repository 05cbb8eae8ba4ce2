package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/zhouzirui/penpal/backend/pkg/errors"
	"github.com/zhouzirui/penpal/backend/pkg/utils"
)

// MiddlewareOption customizes Middleware.
type MiddlewareOption func(*middleware)

// AllowQueryToken also accepts the token from the access_token query
// parameter, for websocket and EventSource clients that cannot set headers.
func AllowQueryToken() MiddlewareOption {
	return func(m *middleware) { m.allowQuery = true }
}

type middleware struct {
	verifier   Verifier
	logger     *zap.Logger
	allowQuery bool
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func Middleware(v Verifier, logger *zap.Logger, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &middleware{verifier: v, logger: logger}
	for _, opt := range opts {
		opt(m)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := m.token(r)
			if !ok {
				utils.RespondAppError(w, appErrors.ErrMissingToken)
				return
			}

			id, err := m.verifier.Verify(r.Context(), token)
			if err != nil {
				m.logger.Info("token verification failed", zap.String("path", r.URL.Path), zap.Error(err))
				utils.RespondAppError(w, appErrors.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func (m *middleware) token(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		return token, token != ""
	}
	if m.allowQuery && header == "" {
		token := strings.TrimSpace(r.URL.Query().Get("access_token"))
		return token, token != ""
	}
	return "", false
}
