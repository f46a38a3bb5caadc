package service

import (
	"errors"
	"net/http"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/PaulBabatuyi/WeddingHub/internal/middleware"
	"github.com/PaulBabatuyi/WeddingHub/internal/models"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var profile auth.Profile
	if err := decodeJSON(r, &profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.accounts.SignUp(r.Context(), profile)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, auth.ErrInvalidProfile):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.accounts.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleSignOut is idempotent: unknown or missing tokens still succeed.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := middleware.BearerToken(r); token != "" {
		s.accounts.SignOut(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	Session auth.Session `json:"session"`
	User    *models.User `json:"user"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	user, err := s.accounts.User(r.Context(), sess)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess, User: user})
}
