package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"storefront-checkout/internal/adapter"
)

// Error codes written by the middleware.
const (
	CodeSessionRequired    = "SESSION_REQUIRED"
	CodeVersionUnsupported = "VERSION_UNSUPPORTED"
)

type contextKey struct{}

// WithIdentity stores id in ctx, along with its bearer token for remote
// calls.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, contextKey{}, id)
	if id.Token != "" {
		ctx = adapter.WithToken(ctx, id.Token)
	}
	return ctx
}

// FromContext returns the identity set by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Resolve parses a raw header value, checks its version against
// serverVersion and attaches token. Shared by REST and MCP.
func Resolve(raw, token, serverVersion string) (Identity, error) {
	id, err := ParseHeader(raw)
	if err != nil {
		return Identity{}, err
	}
	if err := CheckVersion(serverVersion, id.ClientVersion); err != nil {
		return Identity{}, err
	}
	id.Token = token
	return id, nil
}

// Middleware requires a Storefront-Session header on every request except
// exempt paths and stores the Identity in the request context.
func Middleware(serverVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(HeaderName)
			if header == "" {
				writeSessionError(w, http.StatusBadRequest, CodeSessionRequired,
					"Storefront-Session header is required")
				return
			}

			id, err := Resolve(header, BearerToken(r), serverVersion)
			if err != nil {
				var verErr *VersionError
				if errors.As(err, &verErr) {
					writeSessionError(w, http.StatusBadRequest, CodeVersionUnsupported, verErr.Error())
					return
				}
				logger.Warn("invalid Storefront-Session header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				writeSessionError(w, http.StatusBadRequest, CodeSessionRequired,
					"Invalid Storefront-Session header: "+err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// isExemptPath returns true for infrastructure and gateway callback paths.
// MCP carries the session in each tool call instead.
func isExemptPath(path string) bool {
	switch {
	case path == "/health" || path == "/healthz":
		return true
	case path == "/api/v1/payments/callback":
		return true
	case path == "/mcp" || strings.HasPrefix(path, "/mcp/"):
		return true
	default:
		return false
	}
}

func writeSessionError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = code
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}
