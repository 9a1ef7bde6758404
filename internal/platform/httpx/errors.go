// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/praetor-io/praetor/internal/shared"
)

// RespondError maps core errors to HTTP responses using RFC7807.
// System errors never leak internal detail across the boundary.
func RespondError(w http.ResponseWriter, err error) {
	code := shared.CodeOf(err)
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", code, err.Error())
	case errors.Is(err, shared.ErrAuthorization):
		Problem(w, http.StatusForbidden, "Forbidden", code, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", code, err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", code, err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", shared.CodeSystemError, "")
	}
}
