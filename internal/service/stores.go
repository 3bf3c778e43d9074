package service

import (
	"context"
	"time"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/google/uuid"
)

// Интерфейсы хранилищ, которыми пользуются сервисы. Реализуются
// репозиториями поверх Postgres; в тестах — память.

type LeaseStore interface {
	// Get возвращает запись даже если она истекла; (nil, nil) если записи нет
	Get(ctx context.Context, assetUUID uuid.UUID) (*domain.Lease, error)
	// Put — атомарный compare-and-set; domain.ErrConflict, если живую
	// аренду держит другой пользователь
	Put(ctx context.Context, assetUUID uuid.UUID, holderID string, ttl time.Duration) (*domain.Lease, error)
	// Remove снимает аренду указанного держателя; идемпотентно
	Remove(ctx context.Context, assetUUID uuid.UUID, holderID string) error
	// Clear снимает аренду независимо от держателя
	Clear(ctx context.Context, assetUUID uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type AssetStore interface {
	Create(ctx context.Context, asset *domain.Asset) error
	GetByUUID(ctx context.Context, assetUUID uuid.UUID) (*domain.Asset, error)
	// SetActive — guarded swap указателя активной версии и статуса;
	// domain.ErrStaleVersion, если ожидание не совпало
	SetActive(
		ctx context.Context,
		assetUUID uuid.UUID,
		versionID *uuid.UUID,
		status domain.TranscriptionStatus,
		expectedVersionID *uuid.UUID,
		expectedStatus domain.TranscriptionStatus,
	) error
}

type VersionStore interface {
	// AppendAndActivate — атомарная вставка версии со сменой указателя;
	// domain.ErrStaleVersion, если активная версия уже не expectedActive
	AppendAndActivate(ctx context.Context, version *domain.TranscriptionVersion, expectedActive *uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TranscriptionVersion, error)
	History(ctx context.Context, assetUUID uuid.UUID) ([]domain.TranscriptionVersion, error)
	LatestSuccessor(ctx context.Context, assetUUID, versionID uuid.UUID) (*domain.TranscriptionVersion, error)
	ContributorCount(ctx context.Context, assetUUID uuid.UUID) (int, error)
	StampSubmitted(ctx context.Context, versionID uuid.UUID, at time.Time) error
	StampReview(ctx context.Context, versionID uuid.UUID, action domain.ReviewAction, reviewerID string, at time.Time) error
}
