package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shop-api/internal/domain/user"
)

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

type sessionResponse struct {
	userResponse
	AccessToken string `json:"accessToken"`
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func respondSession(w http.ResponseWriter, r *http.Request, status int, s *user.Session, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, sessionResponse{userResponse: toUserResponse(s.User), AccessToken: s.Token})
}

// Register creates an account and returns it with an access token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password)
	respondSession(w, r, http.StatusCreated, s, err)
}

// Login exchanges credentials for an access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.users.Login(r.Context(), req.Email, req.Password)
	respondSession(w, r, http.StatusOK, s, err)
}

// Profile returns the caller's account.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Profile(r.Context(), principal(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// UpdateProfile changes the caller's account and returns a fresh token.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.users.UpdateProfile(r.Context(), principal(r).ID, user.Patch{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	respondSession(w, r, http.StatusOK, s, err)
}

// ListUsers lists every account.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]userResponse, len(users))
	for i := range users {
		out[i] = toUserResponse(&users[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteUser removes an account.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
