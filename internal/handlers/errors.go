package handlers

import (
	"net/http"

	"wasteroute-backend/internal/services"
	"wasteroute-backend/pkg/utils"

	"github.com/pkg/errors"
)

// writeServiceError maps engine errors onto HTTP status codes. Unknown
// errors become 500s without leaking internals.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicateReport):
		utils.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrPermissionDenied):
		utils.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		utils.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrCapacityExceeded):
		utils.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrSchedulingConflict):
		utils.Error(w, http.StatusConflict, err.Error())
	default:
		utils.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
