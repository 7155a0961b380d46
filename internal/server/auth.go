package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/helionsec/helion/internal/auth"
	"github.com/helionsec/helion/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userListItem struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type usersListResponse struct {
	Users []userListItem `json:"users"`
}

// handleLogin authenticates with username and password and returns a JWT
// access token for the Authorization header.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if err := auth.ValidateCredentials(body.Username, body.Password); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var u models.User
	if err := s.db.Get(r.Context(), &u, "SELECT * FROM users WHERE username = ?", body.Username); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid username or password.")
		return
	}
	if !auth.VerifyPassword(body.Password, u.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password.")
		return
	}

	token, err := auth.CreateAccessToken(s.cfg.Auth, strconv.FormatInt(u.ID, 10), u.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issuing token: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// handleListUsers lists all accounts. Admin only.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := s.db.Select(r.Context(), &users, "SELECT * FROM users ORDER BY id"); err != nil {
		writeError(w, http.StatusInternalServerError, "loading users: "+err.Error())
		return
	}
	items := make([]userListItem, 0, len(users))
	for _, u := range users {
		items = append(items, userListItem{ID: u.ID, Username: u.Username, Role: u.Role})
	}
	writeJSON(w, http.StatusOK, usersListResponse{Users: items})
}
