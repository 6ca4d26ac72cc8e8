package httpapi

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"sac-backend-go/internal/services"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ReverifyRequest struct {
	Email string `json:"email"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type WhoamiResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	err := s.Accounts.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: services.MsgRegistered})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	token, err := s.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, token)
}

func (s *Server) Reverify(w http.ResponseWriter, r *http.Request) {
	var req ReverifyRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	message, err := s.Accounts.ResendVerification(r.Context(), req.Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// Verify activates the account and hands the browser a fresh access token
// on the frontend.
func (s *Server) Verify(w http.ResponseWriter, r *http.Request) {
	token, err := s.Accounts.Activate(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	target := s.Config.FrontendURL + "/verified/" + url.PathEscape(token)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) Whoami(w http.ResponseWriter, r *http.Request) {
	identity, _ := CurrentIdentity(r)
	WriteJSON(w, http.StatusOK, WhoamiResponse{ID: identity.ID, Name: identity.Name, Email: identity.Email})
}
