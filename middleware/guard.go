package middleware

import (
	"context"
	"net/http"
	"strings"

	authcore "github.com/sylvize/authcore"
)

type identityContextKey struct{}

// IdentityFromContext returns the verified identity injected by [Guard],
// or false when the request did not pass through the guard.
func IdentityFromContext(ctx context.Context) (*authcore.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*authcore.Identity)
	return identity, ok
}

// Guard returns middleware that verifies the Authorization bearer token
// and injects the resulting [authcore.Identity] into the request context.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := engine.VerifyAccess(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
