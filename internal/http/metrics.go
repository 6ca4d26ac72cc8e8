package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"sac-backend-go/internal/services"
)

type MetricsHistoryResponse struct {
	Items []services.MetricSample `json:"items"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) MetricsHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 120)
	if limit > 500 {
		limit = 500
	}
	items, err := services.LatestMetrics(r.Context(), s.DB, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MetricsHistoryResponse{Items: items})
}

// MetricsSocket takes the access token from the query string since browsers
// cannot set headers on websocket requests.
func (s *Server) MetricsSocket(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		WriteError(w, services.ErrInvalidToken.Status, services.ErrInvalidToken.Message)
		return
	}
	claims, err := s.Tokens.Verify(raw, services.PurposeAccess)
	if err != nil {
		WriteError(w, services.ErrInvalidToken.Status, services.ErrInvalidToken.Message)
		return
	}
	if err := s.Gate.RequireAdmin(r.Context(), claims.UserID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.serveSocket(w, r, s.MetricsHub)
}

func (s *Server) UploadsSocket(w http.ResponseWriter, r *http.Request) {
	s.serveSocket(w, r, s.UploadHub)
}

// serveSocket registers the connection with hub and blocks until the client
// goes away. Incoming messages are discarded.
func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request, hub *services.Hub) {
	if hub == nil {
		WriteError(w, http.StatusServiceUnavailable, "Unavailable")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	hub.Add(conn)
	defer func() {
		hub.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
