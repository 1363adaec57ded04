package httpapi

import (
	"errors"
	"net/http"

	"github.com/ent0n29/speakwell/internal/auth"
	"github.com/ent0n29/speakwell/internal/policy"
	"github.com/ent0n29/speakwell/internal/store"
)

type credentialsRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type accountResponse struct {
	Email string     `json:"email"`
	Role  store.Role `json:"role"`
}

type validationResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body.")
		return
	}
	u, err := s.auth.Register(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, validationResponse{Error: verr.Error(), Problems: verr.Problems})
		return
	case err != nil:
		s.log.WithError(err).Error("register failed")
		respondError(w, http.StatusInternalServerError, "internal", "Registration failed.")
		return
	}
	s.startSession(w, r, u)
	respondJSON(w, http.StatusCreated, accountResponse{Email: u.Email, Role: u.Role})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body.")
		return
	}
	u, err := s.auth.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.log.WithField("email", policy.MaskEmail(req.Email)).Info("login rejected")
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password.")
		return
	case err != nil:
		s.log.WithError(err).Error("login failed")
		respondError(w, http.StatusInternalServerError, "internal", "Login failed.")
		return
	}
	// A fresh session per login drops any companion history from before.
	if old, err := s.sessionFromRequest(r); err == nil {
		s.endSession(old.ID)
	}
	s.startSession(w, r, u)
	respondJSON(w, http.StatusOK, accountResponse{Email: u.Email, Role: u.Role})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.sessionFromRequest(r); err == nil {
		s.endSession(sess.ID)
	}
	clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	respondJSON(w, http.StatusOK, accountResponse{Email: sess.UserID, Role: store.Role(sess.Role)})
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u store.User) {
	sess := s.sessions.Create(u.Email, string(u.Role))
	s.setSessionCookie(w, r, sess)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
		s.metrics.SessionEvents.WithLabelValues("created").Inc()
	}
}

func (s *Server) endSession(id string) {
	if _, err := s.sessions.End(id); err != nil {
		return
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	}
}
