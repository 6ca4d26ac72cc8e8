package httpapi

import (
	"net/http"

	"sac-backend-go/internal/services"
)

type CreateThreadRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
	ClubID  int64  `json:"club_id" validate:"gt=0"`
}

type CreateCommentRequest struct {
	ThreadID int64  `json:"thread_id" validate:"gt=0"`
	Content  string `json:"content" validate:"required"`
}

type LikeRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
}

func (s *Server) ListThreads(w http.ResponseWriter, r *http.Request) {
	clubID, err := queryInt64(r, "club_id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items, err := services.ListThreads(r.Context(), s.DB, clubID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req CreateThreadRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	if err := s.Gate.RequireWriter(r.Context(), identity.ID, req.ClubID, "create threads"); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	id, err := services.CreateThread(r.Context(), s.DB, identity.ID, services.NewThread{
		Title:   req.Title,
		Content: req.Content,
		ClubID:  req.ClubID,
	})
	if err != nil {
		s.writeStatus(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, IDResponse{Success: true, ID: id})
}

func (s *Server) LikeThread(w http.ResponseWriter, r *http.Request) {
	var req LikeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	s.writeStatus(w, r, services.LikeThread(r.Context(), s.DB, identity.ID, req.ID))
}

func (s *Server) ListComments(w http.ResponseWriter, r *http.Request) {
	threadID, err := queryInt64(r, "thread_id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items, err := services.ListComments(r.Context(), s.DB, threadID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	id, err := services.CreateComment(r.Context(), s.DB, identity.ID, req.ThreadID, req.Content)
	if err != nil {
		s.writeStatus(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, IDResponse{Success: true, ID: id})
}

func (s *Server) LikeComment(w http.ResponseWriter, r *http.Request) {
	var req LikeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	identity, _ := CurrentIdentity(r)
	s.writeStatus(w, r, services.LikeComment(r.Context(), s.DB, identity.ID, req.ID))
}
