package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/fitsense/internal/auth"
	"github.com/2beens/fitsense/internal/telemetry/tracing"
	"github.com/2beens/fitsense/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

const SessionTokenHeader = "X-FITSENSE-TOKEN"

type loginChecker interface {
	SessionUser(ctx context.Context, token string) (int, error)
}

type AuthMiddlewareHandler struct {
	loginChecker         loginChecker
	requireSessionToken  bool
	allowedPaths         map[string]bool
	allowedPathsPrefixes []string
}

func NewAuthMiddlewareHandler(
	loginChecker loginChecker,
	requireSessionToken bool,
) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		loginChecker:        loginChecker,
		requireSessionToken: requireSessionToken,
		allowedPaths: map[string]bool{
			"/api/health": true,
			"/api/models": true,
		},
		allowedPathsPrefixes: []string{
			"/api/auth/",
			"/api/models/",
		},
	}
}

func (h *AuthMiddlewareHandler) pathIsAlwaysAllowed(path string) bool {
	if h.allowedPaths[path] {
		return true
	}
	for _, prefix := range h.allowedPathsPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// AuthCheck resolves the session token into the session user and stores it in the request context.
// With session tokens required, requests to protected paths without a valid session are rejected.
func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.pathIsAlwaysAllowed(r.URL.Path) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			authToken := r.Header.Get(SessionTokenHeader)
			if authToken == "" {
				if h.requireSessionToken {
					log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
					pkg.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
					span.SetStatus(codes.Error, "missing-auth-token")
					return
				}
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			userID, err := h.loginChecker.SessionUser(ctx, authToken)
			if err != nil {
				if !errors.Is(err, auth.ErrNoSession) && !errors.Is(err, auth.ErrSessionExpired) {
					log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
					span.RecordError(err)
				}
				if h.requireSessionToken {
					pkg.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
					span.SetStatus(codes.Error, "not-logged")
					return
				}
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(auth.ContextWithSessionUser(r.Context(), userID)))
		})
	}
}
