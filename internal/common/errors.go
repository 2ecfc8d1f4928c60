package common

import (
	"errors"
	"net/http"
)

// Error taxonomy shared by every layer. Wrap with fmt.Errorf("%w: ...") and
// match with errors.Is.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// HTTPStatus maps an error from the taxonomy to the status code returned to callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the short text sent back in error bodies. Storage and
// unknown errors are not echoed to the client.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrStorageUnavailable):
		return "internal server error"
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotFound):
		return err.Error()
	default:
		return "internal server error"
	}
}
