package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by the store, the service and the HTTP boundary.
// Callers classify with errors.Is; context is added with fmt.Errorf("...: %w").
var (
	ErrValidation     = errors.New("validation failed")
	ErrInvalidContent = fmt.Errorf("%w: message must carry text or an image", ErrValidation)
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrPersistence    = errors.New("persistence failure")
)

// Validationf builds an ErrValidation with a caller supplied reason.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Persistence wraps a storage-layer error so it classifies as ErrPersistence
// while keeping the original error reachable through errors.Is / errors.As.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// HTTPStatus maps an error from the core to a response code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
