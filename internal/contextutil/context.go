package contextutil

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const tokenContextKey contextKey = "grafana_token"

// SetToken stores the Grafana token in the context
func SetToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves the Grafana token from the context
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok
}

// FromRequest carries the token of an "Authorization: Bearer <token>"
// header over into the context.
func FromRequest(ctx context.Context, r *http.Request) context.Context {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ctx
	}
	if token = strings.TrimSpace(token); token == "" {
		return ctx
	}
	return SetToken(ctx, token)
}
