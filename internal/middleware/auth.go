package middleware

import (
	"net/http"

	"github.com/mwhitfield/saasdash/internal/auth"
	"github.com/mwhitfield/saasdash/internal/store"
)

// SessionCookieName is the cookie carrying the dashboard session token.
const SessionCookieName = "dash_session"

// RequireAuth validates the session cookie and populates AuthContext. API
// clients get a plain 401; there is no login page to redirect to.
func RequireAuth(sessions *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				UserID: sess.UserID,
				Email:  sess.Email,
				Token:  sess.Token,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
