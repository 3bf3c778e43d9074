package handler

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/LibraryOfCongress/concordia-sub000/internal/auth"
	"github.com/LibraryOfCongress/concordia-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxImageSize = 32 << 20 // 32MB

type AssetHandler struct {
	assetService *service.AssetService
}

func NewAssetHandler(assetService *service.AssetService) *AssetHandler {
	return &AssetHandler{assetService: assetService}
}

// CreateAsset регистрирует актив: метаданные плюс изображение страницы.
// Точка входа для загрузки каталога.
func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("[CreateAsset] Authentication failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		log.Printf("[CreateAsset] Failed to parse multipart form: %v", err)
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	title := r.FormValue("title")

	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Page image is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageSize))
	if err != nil {
		http.Error(w, "Failed to read page image", http.StatusBadRequest)
		return
	}

	log.Printf("[CreateAsset] Registering asset %q for user %s", title, userID)

	asset, err := h.assetService.Create(r.Context(), title, image)
	if err != nil {
		log.Printf("[CreateAsset] Failed to create asset: %v", err)
		http.Error(w, fmt.Sprintf("Failed to create asset: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}

// GetAsset возвращает состояние актива: статус, активную версию и аренду
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	assetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid asset UUID", http.StatusBadRequest)
		return
	}

	state, err := h.assetService.Get(r.Context(), assetUUID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// GetImage отдаёт изображение страницы из хранилища
func (h *AssetHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	assetUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid asset UUID", http.StatusBadRequest)
		return
	}

	object, err := h.assetService.Image(r.Context(), assetUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", object.ContentType())
	if object.ContentLength() > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(object.ContentLength(), 10))
	}

	if _, err := io.Copy(w, object); err != nil {
		log.Printf("[GetImage] Failed to stream image for asset %s: %v", assetUUID, err)
	}
}
