package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/LibraryOfCongress/concordia-sub000/internal/service/s3"
	"github.com/google/uuid"
)

const (
	ocrRequestTimeout = 90 * time.Second
	presignLifetime   = 10 * time.Minute
)

// OCRService вызывает внешний движок распознавания текста.
// Вызов одиночный и без повторов: отказ возвращается вызывающему как
// повторяемая ошибка. По каждому активу действует ограничение частоты.
type OCRService struct {
	assetRepo      AssetStore
	transcriptions *TranscriptionService
	storage        s3.Storage
	endpoint       string
	rate           time.Duration
	client         *http.Client
	now            func() time.Time

	mu       sync.Mutex
	lastCall map[uuid.UUID]time.Time
}

func NewOCRService(
	assetRepo AssetStore,
	transcriptions *TranscriptionService,
	storage s3.Storage,
	endpoint string,
	rate time.Duration,
) *OCRService {
	return &OCRService{
		assetRepo:      assetRepo,
		transcriptions: transcriptions,
		storage:        storage,
		endpoint:       endpoint,
		rate:           rate,
		client:         &http.Client{Timeout: ocrRequestTimeout},
		now:            time.Now,
		lastCall:       make(map[uuid.UUID]time.Time),
	}
}

type OCRResult struct {
	VersionID uuid.UUID `json:"version_id"`
	Text      string    `json:"text"`
}

// Transcribe распознаёт страницу и сохраняет результат новой версией.
// Требует те же условия, что и обычное сохранение: живую аренду и
// актуальный supersedes.
func (s *OCRService) Transcribe(
	ctx context.Context,
	assetUUID uuid.UUID,
	callerID string,
	language string,
	supersedes *uuid.UUID,
) (*OCRResult, error) {
	if s.endpoint == "" {
		return nil, fmt.Errorf("OCR endpoint is not configured")
	}

	asset, err := s.assetRepo.GetByUUID(ctx, assetUUID)
	if err != nil {
		return nil, err
	}

	// Проверяем аренду до обращения к движку: неавторизованный вызов не
	// должен расходовать ни квоту, ни внешний сервис
	if !asset.TranscriptionStatus.Editable() {
		return nil, domain.ErrNotEditable
	}
	if err := s.transcriptions.reservations.CheckHolding(ctx, assetUUID, callerID); err != nil {
		return nil, err
	}

	if !s.admit(assetUUID) {
		return nil, domain.ErrRateLimited
	}

	imageURL, err := s.storage.PresignGetObject(ctx, asset.StorageKey, presignLifetime)
	if err != nil {
		return nil, fmt.Errorf("failed to presign page image: %w", err)
	}

	text, err := s.extract(ctx, imageURL, language)
	if err != nil {
		return nil, err
	}

	result, err := s.transcriptions.save(ctx, assetUUID, callerID, text, supersedes, true)
	if err != nil {
		return nil, err
	}

	return &OCRResult{VersionID: result.VersionID, Text: text}, nil
}

// admit регистрирует попытку вызова и отклоняет её, если по этому активу
// движок вызывался слишком недавно. Время попытки фиксируется до вызова:
// неудачный запрос тоже расходует квоту.
func (s *OCRService) admit(assetUUID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.lastCall[assetUUID]; ok && now.Sub(last) < s.rate {
		return false
	}
	s.lastCall[assetUUID] = now
	return true
}

func (s *OCRService) extract(ctx context.Context, imageURL, language string) (string, error) {
	payload, err := json.Marshal(struct {
		ImageURL string `json:"image_url"`
		Language string `json:"language"`
	}{
		ImageURL: imageURL,
		Language: language,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR engine returned status %d", resp.StatusCode)
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}

	return body.Text, nil
}
