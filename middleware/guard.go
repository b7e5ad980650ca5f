package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/decide-vote/voteauth"
)

type userContextKey struct{}

// UserFromContext returns the profile injected by [Guard], if any.
func UserFromContext(ctx context.Context) (*voteauth.PublicUser, bool) {
	user, ok := ctx.Value(userContextKey{}).(*voteauth.PublicUser)
	return user, ok
}

// Guard rejects requests whose Authorization header does not carry a live
// session token. On success the owner's public profile is available through
// [UserFromContext].
func Guard(engine *voteauth.Engine) func(http.Handler) http.Handler {
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

			ctx := r.Context()
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				ctx = voteauth.WithClientIP(ctx, host)
			}

			user, err := engine.GetUser(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, userContextKey{}, user)
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
