package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError is the only error shape rendered to clients.
type ServiceError struct {
	Status  int
	Code    string
	Message string
}

func (e ServiceError) Error() string {
	return e.Message
}

var (
	ErrWrongCredentials    = ServiceError{Status: http.StatusUnauthorized, Code: "WrongCredentials", Message: "Wrong credentials"}
	ErrMissingCredentials  = ServiceError{Status: http.StatusBadRequest, Code: "MissingCredentials", Message: "Missing credentials"}
	ErrUserAlreadyExists   = ServiceError{Status: http.StatusBadRequest, Code: "UserAlreadyExists", Message: "User already exists"}
	ErrUserAlreadyVerified = ServiceError{Status: http.StatusBadRequest, Code: "UserAlreadyVerified", Message: "User already verified"}
	ErrUserNotActive       = ServiceError{Status: http.StatusBadRequest, Code: "UserNotActive", Message: "User not active"}
	ErrInvalidToken        = ServiceError{Status: http.StatusBadRequest, Code: "InvalidToken", Message: "Invalid token"}
	ErrTokenCreation       = ServiceError{Status: http.StatusInternalServerError, Code: "TokenCreation", Message: "Token creation error"}
	ErrInvalidImage        = ServiceError{Status: http.StatusUnprocessableEntity, Code: "InvalidImage", Message: "Invalid image"}
	ErrWebPEncode          = ServiceError{Status: http.StatusInternalServerError, Code: "FailedToWriteAsWebP", Message: "Failed to write as WebP"}
	ErrMediaNotFound       = ServiceError{Status: http.StatusNotFound, Code: "NotFound", Message: "Not found"}
	ErrInternal            = ServiceError{Status: http.StatusInternalServerError, Code: "InternalServerError", Message: "Internal Server Error"}
)

func ErrNotFound(msg string) error {
	return ServiceError{Status: http.StatusNotFound, Code: "NotFound", Message: msg}
}

func ErrBadRequest(msg string) error {
	return ServiceError{Status: http.StatusBadRequest, Code: "BadRequest", Message: msg}
}

func ErrForbidden(msg string) error {
	return ServiceError{Status: http.StatusForbidden, Code: "Forbidden", Message: msg}
}

func ErrConflict(msg string) error {
	return ServiceError{Status: http.StatusConflict, Code: "Conflict", Message: msg}
}

// AsServiceError unwraps err to a ServiceError if one is in the chain.
func AsServiceError(err error) (ServiceError, bool) {
	var serr ServiceError
	if errors.As(err, &serr) {
		return serr, true
	}
	return ServiceError{}, false
}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
