package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
)

// errorStatus отображает ошибки ядра в HTTP-статусы. 408 и 409 намеренно
// различаются: только 408 (собственная истёкшая аренда) запускает у клиента
// автоматический повторный захват.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExpired):
		return http.StatusRequestTimeout
	case errors.Is(err, domain.ErrSelfReview), errors.Is(err, domain.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNoLease),
		errors.Is(err, domain.ErrStaleVersion),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotEditable),
		errors.Is(err, domain.ErrNoUndo),
		errors.Is(err, domain.ErrNoRedo):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
