package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrDuplicate       = errors.New("duplicate entry")
	ErrValidation      = errors.New("validation failed")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTooManyRequests = errors.New("too many requests")
)

// RespondError maps sentinel errors to the failure envelope. Unknown errors
// become a bare 500.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		JSON(w, http.StatusBadRequest, ErrorBody{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Errors:  fieldErrors(verrs),
		})
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, "Invalid request body")
	case errors.Is(err, ErrDuplicate):
		Error(w, http.StatusBadRequest, "Duplicate entry")
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, "Not Found")
	case errors.Is(err, ErrUnauthorized):
		Error(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, ErrForbidden):
		Error(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, ErrTooManyRequests):
		Error(w, http.StatusTooManyRequests, "Too Many Requests")
	default:
		Error(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fieldErr := range verrs {
		out[fieldErr.Field()] = fieldErr.Tag()
	}
	return out
}
