package httpapi

import (
	"net/http"
	"time"

	"sac-backend-go/internal/services"
)

type CreateAnnouncementRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
	ClubID  int64  `json:"club_id" validate:"gt=0"`
}

type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	ClubID      int64     `json:"club_id" validate:"gt=0"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	Venue       string    `json:"venue" validate:"required"`
}

func (s *Server) PublicAnnouncements(w http.ResponseWriter, r *http.Request) {
	items, err := services.PublicAnnouncements(r.Context(), s.DB)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req CreateAnnouncementRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	if err := s.Gate.RequireWriter(r.Context(), identity.ID, req.ClubID, "create announcements"); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	_, err := services.CreateAnnouncement(r.Context(), s.DB, services.NewAnnouncement{
		Title:   req.Title,
		Content: req.Content,
		ClubID:  req.ClubID,
	})
	s.writeStatus(w, r, err)
}

func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	items, err := services.ListEvents(r.Context(), s.DB)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// CreateEvent returns the new id so the client can attach media to it.
func (s *Server) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	if err := s.Gate.RequireWriter(r.Context(), identity.ID, req.ClubID, "create events"); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	id, err := services.CreateEvent(r.Context(), s.DB, identity.ID, services.NewEvent{
		Title:       req.Title,
		Description: req.Description,
		ClubID:      req.ClubID,
		StartsAt:    req.StartsAt,
		Venue:       req.Venue,
	})
	if err != nil {
		s.writeStatus(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, IDResponse{Success: true, ID: id})
}
