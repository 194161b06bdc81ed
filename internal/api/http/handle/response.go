package handle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"dishpatch/internal/domain"

	"github.com/google/uuid"
)

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto HTTP statuses. The error code
// travels as-is so clients can match on it.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrTableNotFound),
		errors.Is(err, domain.ErrMenuItemNotFound),
		errors.Is(err, domain.ErrTicketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrBadQuantity):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidItemTransition),
		errors.Is(err, domain.ErrOrderNotEditable),
		errors.Is(err, domain.ErrOrderNotMergeable),
		errors.Is(err, domain.ErrSourceWouldBeEmpty),
		errors.Is(err, domain.ErrTicketNotCancellable):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStock):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
