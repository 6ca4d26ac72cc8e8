package httpapi

import (
	"net/http"
	"strings"

	"sac-backend-go/internal/services"
)

type CreateClubRequest struct {
	Name           string   `json:"name" validate:"required"`
	Email          string   `json:"email" validate:"required,email"`
	Description    string   `json:"description"`
	CouncilName    string   `json:"council_name" validate:"required"`
	ClubHeadEmails []string `json:"club_head_emails" validate:"required,min=1,dive,email"`
	Phones         []string `json:"phones"`
}

// ClubUpdateBody mirrors the tagged update object; exactly one key is set.
type ClubUpdateBody struct {
	UpdateHeads       *[]string `json:"UpdateHeads"`
	UpdateDescription *string   `json:"UpdateDescription"`
	UpdatePhones      *[]string `json:"UpdatePhones"`
	UpdateEmail       *string   `json:"UpdateEmail" validate:"omitempty,email"`
}

type UpdateClubRequest struct {
	Name   string         `json:"name" validate:"required"`
	Update ClubUpdateBody `json:"update"`
}

type JoinClubRequest struct {
	ClubID  int64   `json:"club_id" validate:"gt=0"`
	Message *string `json:"message"`
}

type AcceptApplicationRequest struct {
	ApplicationID int64 `json:"application_id" validate:"gt=0"`
}

func (s *Server) ListClubs(w http.ResponseWriter, r *http.Request) {
	items, err := services.ListClubs(r.Context(), s.DB)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) ListMyClubs(w http.ResponseWriter, r *http.Request) {
	identity, _ := CurrentIdentity(r)
	items, err := services.ListMemberClubs(r.Context(), s.DB, identity.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	identity, _ := CurrentIdentity(r)
	items, err := services.ListApplications(r.Context(), s.DB, identity.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) CreateClub(w http.ResponseWriter, r *http.Request) {
	var req CreateClubRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	_, err := services.CreateClub(r.Context(), s.DB, services.NewClub{
		Name:        strings.TrimSpace(req.Name),
		Email:       req.Email,
		Description: req.Description,
		CouncilName: req.CouncilName,
		HeadEmails:  req.ClubHeadEmails,
		Phones:      req.Phones,
	})
	s.writeStatus(w, r, err)
}

func (s *Server) UpdateClub(w http.ResponseWriter, r *http.Request) {
	var req UpdateClubRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	ctx := r.Context()
	clubID, err := services.ClubIDByName(ctx, s.DB, req.Name)
	if err != nil {
		s.writeStatus(w, r, err)
		return
	}
	if err := s.Gate.RequireClubHeadOrAdmin(ctx, identity, clubID); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	err = services.UpdateClub(ctx, s.DB, clubID, services.ClubUpdate{
		Heads:       req.Update.UpdateHeads,
		Description: req.Update.UpdateDescription,
		Phones:      req.Update.UpdatePhones,
		Email:       req.Update.UpdateEmail,
	})
	s.writeStatus(w, r, err)
}

func (s *Server) JoinClub(w http.ResponseWriter, r *http.Request) {
	var req JoinClubRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	message := ""
	if req.Message != nil {
		message = *req.Message
	}
	s.writeStatus(w, r, services.JoinClub(r.Context(), s.DB, identity.ID, req.ClubID, message))
}

func (s *Server) ViewApplications(w http.ResponseWriter, r *http.Request) {
	clubID, err := queryInt64(r, "club_id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	if err := s.Gate.RequireClubHead(r.Context(), identity.Email, clubID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items, err := services.PendingApplications(r.Context(), s.DB, clubID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) AcceptApplication(w http.ResponseWriter, r *http.Request) {
	var req AcceptApplicationRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	ctx := r.Context()
	clubID, err := services.ApplicationClubID(ctx, s.DB, req.ApplicationID)
	if err != nil {
		s.writeStatus(w, r, err)
		return
	}
	if err := s.Gate.RequireClubHead(ctx, identity.Email, clubID); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	s.writeStatus(w, r, services.AcceptApplication(ctx, s.DB, req.ApplicationID))
}

func (s *Server) GetClubFull(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.writeServiceError(w, r, services.ErrBadRequest("Invalid name"))
		return
	}
	club, err := services.ClubFullView(r.Context(), s.DB, name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, club)
}
