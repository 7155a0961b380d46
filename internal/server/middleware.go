package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/helionsec/helion/internal/auth"
	"github.com/helionsec/helion/models"
)

type contextKey string

const userContextKey contextKey = "current-user"

// currentUser identifies the authenticated caller for the duration of a
// request.
type currentUser struct {
	ID       int64
	Username string
	Role     string
}

func userFromContext(ctx context.Context) (currentUser, bool) {
	u, ok := ctx.Value(userContextKey).(currentUser)
	return u, ok
}

// requireAuth enforces a valid bearer token and resolves the account behind
// it. With auth disabled the request runs as a synthetic local admin, which
// keeps single-user development setups friction free.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Enabled {
			ctx := context.WithValue(r.Context(), userContextKey, currentUser{
				ID:       0,
				Username: "local",
				Role:     models.RoleAdmin,
			})
			next(w, r.WithContext(ctx))
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims, err := auth.DecodeAccessToken(s.cfg.Auth, strings.TrimSpace(token))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid token payload")
			return
		}

		var u models.User
		if err := s.db.Get(r.Context(), &u, "SELECT * FROM users WHERE id = ?", userID); err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, currentUser{
			ID:       u.ID,
			Username: u.Username,
			Role:     u.Role,
		})
		next(w, r.WithContext(ctx))
	}
}

// requireAdmin is requireAuth plus an admin role gate.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userFromContext(r.Context())
		if !ok || u.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	})
}
