package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"sac-backend-go/internal/services"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the body of every CRUD write.
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type IDResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// resolveError maps err to the status and message a client may see.
// Anything that is not a ServiceError is logged and hidden behind a 500.
func (s *Server) resolveError(r *http.Request, err error) (int, string) {
	if serr, ok := services.AsServiceError(err); ok {
		return serr.Status, serr.Message
	}
	s.logger().Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	return services.ErrInternal.Status, services.ErrInternal.Message
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := s.resolveError(r, err)
	WriteError(w, status, message)
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		WriteJSON(w, http.StatusOK, StatusResponse{Success: true})
		return
	}
	status, message := s.resolveError(r, err)
	WriteJSON(w, status, StatusResponse{Success: false, Error: message})
}

// decodeJSON reads the body into dst and runs struct validation.
func (s *Server) decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return services.ErrBadRequest("Invalid payload")
	}
	if err := s.Validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return services.ErrBadRequest("Invalid " + verrs[0].Field())
		}
		return services.ErrBadRequest("Invalid payload")
	}
	return nil
}

// NewValidator reports json field names in validation errors.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, services.ErrBadRequest("Invalid " + name)
	}
	return value, nil
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value < 1 {
		return fallback
	}
	return value
}
