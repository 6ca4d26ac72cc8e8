package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"sac-backend-go/internal/services"
)

type CreateGrievanceRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Grievance string `json:"grievance" validate:"required"`
}

type BusResponse struct {
	Stops     []string `json:"stops"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
}

func (s *Server) CreateGrievance(w http.ResponseWriter, r *http.Request) {
	var req CreateGrievanceRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	s.writeStatus(w, r, services.CreateGrievance(r.Context(), s.DB, req.Email, req.Grievance))
}

func (s *Server) ListGrievances(w http.ResponseWriter, r *http.Request) {
	items, err := services.ListGrievances(r.Context(), s.DB)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) BusFrom(w http.ResponseWriter, r *http.Request) {
	start := strings.TrimSpace(r.URL.Query().Get("start_point"))
	if start == "" {
		s.writeServiceError(w, r, services.ErrBadRequest("Invalid start_point"))
		return
	}
	buses, err := services.BusesFrom(r.Context(), s.DB, start, time.Now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]BusResponse, 0, len(buses))
	for _, bus := range buses {
		stops := []string(bus.Stops)
		if stops == nil {
			stops = []string{}
		}
		items = append(items, BusResponse{Stops: stops, StartTime: bus.StartTime, EndTime: bus.EndTime})
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		s.logger().Warn("health check failed", zap.Error(err))
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
