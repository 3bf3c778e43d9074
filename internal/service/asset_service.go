package service

import (
	"context"
	"fmt"
	"time"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/LibraryOfCongress/concordia-sub000/internal/service/s3"
	"github.com/google/uuid"
)

// AssetService регистрирует активы и отдаёт их состояние.
// Сами активы приходят из загрузки каталога; ядро их не удаляет.
type AssetService struct {
	assetRepo AssetStore
	leaseRepo LeaseStore
	storage   s3.Storage
	now       func() time.Time
}

func NewAssetService(assetRepo AssetStore, leaseRepo LeaseStore, storage s3.Storage) *AssetService {
	return &AssetService{
		assetRepo: assetRepo,
		leaseRepo: leaseRepo,
		storage:   storage,
		now:       time.Now,
	}
}

// Create регистрирует актив и кладёт изображение страницы в хранилище
func (s *AssetService) Create(ctx context.Context, title string, image []byte) (*domain.Asset, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("page image is required")
	}

	assetUUID := uuid.New()
	storageKey := fmt.Sprintf("assets/%s/page", assetUUID)

	if err := s.storage.UploadBytes(storageKey, image); err != nil {
		return nil, fmt.Errorf("failed to store page image: %w", err)
	}

	asset := &domain.Asset{
		UUID:                assetUUID,
		Title:               title,
		StorageKey:          storageKey,
		TranscriptionStatus: domain.StatusNotStarted,
	}

	if err := s.assetRepo.Create(ctx, asset); err != nil {
		return nil, err
	}

	return asset, nil
}

// AssetState — актив вместе с видимостью его аренды
type AssetState struct {
	Asset     *domain.Asset `json:"asset"`
	Reserved  bool          `json:"reserved"`
	ReservedBy string       `json:"reserved_by,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

// Get возвращает актив и, если аренда жива, её держателя
func (s *AssetService) Get(ctx context.Context, assetUUID uuid.UUID) (*AssetState, error) {
	asset, err := s.assetRepo.GetByUUID(ctx, assetUUID)
	if err != nil {
		return nil, err
	}

	state := &AssetState{Asset: asset}

	lease, err := s.leaseRepo.Get(ctx, assetUUID)
	if err != nil {
		// Видимость аренды — справочная; сам актив отдаём
		return state, nil
	}
	if lease != nil && lease.LiveAt(s.now()) {
		state.Reserved = true
		state.ReservedBy = lease.HolderID
		state.ExpiresAt = &lease.ExpiresAt
	}

	return state, nil
}

// Image отдаёт изображение страницы из хранилища
func (s *AssetService) Image(ctx context.Context, assetUUID uuid.UUID) (s3.S3Object, error) {
	asset, err := s.assetRepo.GetByUUID(ctx, assetUUID)
	if err != nil {
		return nil, err
	}
	if asset.StorageKey == "" {
		return nil, domain.ErrNotFound
	}

	return s.storage.GetObject(ctx, asset.StorageKey)
}
