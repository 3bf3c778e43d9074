package handler

import (
	"log"
	"net/http"

	"github.com/LibraryOfCongress/concordia-sub000/internal/auth"
	"github.com/LibraryOfCongress/concordia-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ReservationHandler struct {
	reservationService *service.ReservationService
}

func NewReservationHandler(reservationService *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// Reserve выдаёт или продлевает аренду на редактирование актива.
// 200 — granted, 409 — актив занят другим пользователем, 408 — собственная
// аренда истекла и её нужно переоформить.
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("[Reserve] Authentication failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	assetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid asset UUID", http.StatusBadRequest)
		return
	}

	result, err := h.reservationService.Reserve(r.Context(), assetUUID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch result.Outcome {
	case service.OutcomeConflict:
		writeJSON(w, http.StatusConflict, result)
	case service.OutcomeExpired:
		writeJSON(w, http.StatusRequestTimeout, result)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// Release снимает аренду вызывающего. Идемпотентен и всегда отвечает 200:
// клиент шлёт его и как beacon при закрытии страницы, недоставка терпима —
// аренду в итоге вернёт истечение TTL.
func (h *ReservationHandler) Release(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("[Release] Authentication failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	assetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid asset UUID", http.StatusBadRequest)
		return
	}

	if err := h.reservationService.Release(r.Context(), assetUUID, userID); err != nil {
		log.Printf("[Release] Failed to release lease for asset %s: %v", assetUUID, err)
	}

	writeJSON(w, http.StatusOK, struct {
		Released bool `json:"released"`
	}{Released: true})
}
