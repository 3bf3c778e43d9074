package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/LibraryOfCongress/concordia-sub000/internal/auth"
	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/LibraryOfCongress/concordia-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type TranscriptionHandler struct {
	transcriptionService *service.TranscriptionService
}

type saveRequest struct {
	Text       string     `json:"text"`
	Supersedes *uuid.UUID `json:"supersedes,omitempty"`
}

type reviewRequest struct {
	Action domain.ReviewAction `json:"action"`
}

func NewTranscriptionHandler(transcriptionService *service.TranscriptionService) *TranscriptionHandler {
	return &TranscriptionHandler{transcriptionService: transcriptionService}
}

// Save создаёт новую версию расшифровки поверх supersedes
func (h *TranscriptionHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("[Save] Authentication failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	assetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid asset UUID", http.StatusBadRequest)
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[Save] Failed to decode request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.transcriptionService.Save(r.Context(), assetUUID, userID, req.Text, req.Supersedes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// History возвращает цепочку версий от активной к первой
func (h *TranscriptionHandler) History(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	assetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid asset UUID", http.StatusBadRequest)
		return
	}

	versions, err := h.transcriptionService.History(r.Context(), assetUUID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Versions []domain.TranscriptionVersion `json:"versions"`
	}{Versions: versions})
}

// Submit отправляет активную версию на рецензию
func (h *TranscriptionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("[Submit] Authentication failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	status, err := h.transcriptionService.Submit(r.Context(), versionID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Status domain.TranscriptionStatus `json:"status"`
	}{Status: status})
}

// Review принимает или отклоняет отправленную версию
func (h *TranscriptionHandler) Review(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("[Review] Authentication failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[Review] Failed to decode request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Action.Valid() {
		http.Error(w, "Action must be accept or reject", http.StatusBadRequest)
		return
	}

	status, err := h.transcriptionService.Review(r.Context(), versionID, req.Action, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Status domain.TranscriptionStatus `json:"status"`
	}{Status: status})
}

// Rollback сдвигает активную версию на шаг назад по цепочке
func (h *TranscriptionHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	h.roll(w, r, h.transcriptionService.Rollback)
}

// Rollforward сдвигает активную версию на самого свежего преемника
func (h *TranscriptionHandler) Rollforward(w http.ResponseWriter, r *http.Request) {
	h.roll(w, r, h.transcriptionService.Rollforward)
}

func (h *TranscriptionHandler) roll(
	w http.ResponseWriter,
	r *http.Request,
	move func(ctx context.Context, assetUUID uuid.UUID, callerID string) (*service.RollResult, error),
) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	assetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid asset UUID", http.StatusBadRequest)
		return
	}

	result, err := move(r.Context(), assetUUID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
