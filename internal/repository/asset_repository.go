package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AssetRepository struct {
	db *sqlx.DB
}

func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	query := `
        INSERT INTO assets (uuid, title, storage_key, transcription_status)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		asset.UUID,
		asset.Title,
		asset.StorageKey,
		asset.TranscriptionStatus,
	).Scan(&asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

func (r *AssetRepository) GetByUUID(ctx context.Context, assetUUID uuid.UUID) (*domain.Asset, error) {
	var asset domain.Asset
	query := `SELECT * FROM assets WHERE uuid = $1`

	err := r.db.GetContext(ctx, &asset, query, assetUUID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return &asset, nil
}

// SetActive переставляет указатель активной версии и статус одним
// guarded UPDATE. Запись меняется только если указатель и статус всё ещё
// те, что ожидал вызывающий — иначе другая сессия успела раньше.
func (r *AssetRepository) SetActive(
	ctx context.Context,
	assetUUID uuid.UUID,
	versionID *uuid.UUID,
	status domain.TranscriptionStatus,
	expectedVersionID *uuid.UUID,
	expectedStatus domain.TranscriptionStatus,
) error {
	query := `
        UPDATE assets
        SET active_version_id = $2,
            transcription_status = $3,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1
          AND active_version_id IS NOT DISTINCT FROM $4
          AND transcription_status = $5`

	result, err := r.db.ExecContext(ctx, query, assetUUID, versionID, status, expectedVersionID, expectedStatus)
	if err != nil {
		return fmt.Errorf("failed to update active version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrStaleVersion
	}

	return nil
}
