package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-pos/internal/logger"
	"ms-pos/internal/models"
)

type contextKey string

const actorKey contextKey = "actor"

// Middleware authenticates every request with an HS256 bearer token and stores
// the actor in the request context.
func Middleware(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			actor, err := ParseActor(rawToken, key)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the authenticated actor, if any.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}
