package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/LibraryOfCongress/concordia-sub000/internal/auth"
	"github.com/LibraryOfCongress/concordia-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OCRHandler struct {
	ocrService *service.OCRService
}

type ocrRequest struct {
	Language   string     `json:"language"`
	Supersedes *uuid.UUID `json:"supersedes,omitempty"`
}

func NewOCRHandler(ocrService *service.OCRService) *OCRHandler {
	return &OCRHandler{ocrService: ocrService}
}

// Transcribe запускает распознавание страницы внешним движком.
// 429 — по активу действует лимит частоты; клиенту предлагается
// повторить позже, автоматических повторов нет.
func (h *OCRHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("[Transcribe] Authentication failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	assetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid asset UUID", http.StatusBadRequest)
		return
	}

	var req ocrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[Transcribe] Failed to decode request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.ocrService.Transcribe(r.Context(), assetUUID, userID, req.Language, req.Supersedes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
