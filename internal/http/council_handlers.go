package httpapi

import (
	"net/http"
	"strings"

	"sac-backend-go/internal/services"
)

type CreateCouncilRequest struct {
	Name                   string   `json:"name" validate:"required"`
	SecretaryEmail         string   `json:"secretary_email" validate:"required,email"`
	DeputySecretariesEmail []string `json:"deputy_secretaries_email" validate:"dive,email"`
}

// The update keys keep the spelling existing clients send.
type CouncilUpdateBody struct {
	UpdateSecretary *string   `json:"UpdateSeceratary" validate:"omitempty,email"`
	UpdateDeputies  *[]string `json:"UpdateDeputySeceretaries"`
}

type UpdateCouncilRequest struct {
	Name   string            `json:"name" validate:"required"`
	Update CouncilUpdateBody `json:"update"`
}

type CouncilName struct {
	Name string `json:"name"`
}

func (s *Server) ListCouncils(w http.ResponseWriter, r *http.Request) {
	names, err := services.ListCouncilNames(r.Context(), s.DB)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]CouncilName, 0, len(names))
	for _, name := range names {
		items = append(items, CouncilName{Name: name})
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) CreateCouncil(w http.ResponseWriter, r *http.Request) {
	var req CreateCouncilRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	_, err := services.CreateCouncil(r.Context(), s.DB, services.NewCouncil{
		Name:              strings.TrimSpace(req.Name),
		SecretaryEmail:    req.SecretaryEmail,
		DeputySecretaries: req.DeputySecretariesEmail,
	})
	s.writeStatus(w, r, err)
}

func (s *Server) UpdateCouncil(w http.ResponseWriter, r *http.Request) {
	var req UpdateCouncilRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeStatus(w, r, err)
		return
	}
	err := services.UpdateCouncil(r.Context(), s.DB, req.Name, services.CouncilUpdate{
		Secretary: req.Update.UpdateSecretary,
		Deputies:  req.Update.UpdateDeputies,
	})
	s.writeStatus(w, r, err)
}
