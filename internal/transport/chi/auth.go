package chi

import (
	"context"
	"net/http"
)

// UserHeader carries the pre-authenticated user id. The upstream proxy is
// trusted to have verified it.
const UserHeader = "X-Renoted-User"

type userKey struct{}

// UserFromContext returns the authenticated user id, empty if absent.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userKey{}).(string)
	return user
}

// ContextWithUser injects a user id, used by tests.
func ContextWithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserAuthMiddleware requires the user header on every request and places
// its value in the request context.
func UserAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := r.Header.Get(UserHeader)
			if user == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing user header")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}
