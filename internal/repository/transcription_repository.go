package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TranscriptionRepository struct {
	db *sqlx.DB
}

func NewTranscriptionRepository(db *sqlx.DB) *TranscriptionRepository {
	return &TranscriptionRepository{db: db}
}

// AppendAndActivate вставляет новую версию и переводит на неё указатель
// активной версии актива в одной транзакции. Если активная версия уже не
// совпадает с expectedActive, транзакция откатывается целиком — устаревшее
// сохранение не оставляет после себя ни строки версии, ни смены статуса.
func (r *TranscriptionRepository) AppendAndActivate(
	ctx context.Context,
	version *domain.TranscriptionVersion,
	expectedActive *uuid.UUID,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Блокируем строку актива: все переходы по одному активу сериализуются
	var currentActive *uuid.UUID
	lockQuery := `SELECT active_version_id FROM assets WHERE uuid = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lockQuery, version.AssetUUID).Scan(&currentActive); err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return err
	}

	if !uuidPtrEqual(currentActive, expectedActive) {
		return domain.ErrStaleVersion
	}

	insertQuery := `
        INSERT INTO transcription_versions (id, asset_uuid, text, author_id, ocr_generated, supersedes)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`

	err = tx.QueryRowContext(
		ctx,
		insertQuery,
		version.ID,
		version.AssetUUID,
		version.Text,
		version.AuthorID,
		version.OCRGenerated,
		version.Supersedes,
	).Scan(&version.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}

	updateQuery := `
        UPDATE assets
        SET active_version_id = $2,
            transcription_status = $3,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1`

	if _, err := tx.ExecContext(ctx, updateQuery, version.AssetUUID, version.ID, domain.StatusInProgress); err != nil {
		return fmt.Errorf("failed to activate version: %w", err)
	}

	return tx.Commit()
}

func (r *TranscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TranscriptionVersion, error) {
	var version domain.TranscriptionVersion
	query := `SELECT * FROM transcription_versions WHERE id = $1`

	err := r.db.GetContext(ctx, &version, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return &version, nil
}

// History обходит цепочку supersedes от активной версии назад.
// Цепочка конечна и без циклов (supersedes всегда указывает на более
// раннюю запись), поэтому рекурсивный CTE завершается.
func (r *TranscriptionRepository) History(ctx context.Context, assetUUID uuid.UUID) ([]domain.TranscriptionVersion, error) {
	var versions []domain.TranscriptionVersion
	query := `
        WITH RECURSIVE chain AS (
            SELECT tv.*
            FROM transcription_versions tv
            JOIN assets a ON a.active_version_id = tv.id
            WHERE a.uuid = $1

            UNION ALL

            SELECT tv.*
            FROM transcription_versions tv
            JOIN chain c ON c.supersedes = tv.id
        )
        SELECT * FROM chain`

	err := r.db.SelectContext(ctx, &versions, query, assetUUID)
	if err != nil {
		return nil, err
	}

	return versions, nil
}

// LatestSuccessor находит самую свежую версию, чей supersedes указывает на
// заданную. После форка побеждает новая ветка — старая остаётся в
// хранилище, но недостижима от головы цепочки.
func (r *TranscriptionRepository) LatestSuccessor(ctx context.Context, assetUUID, versionID uuid.UUID) (*domain.TranscriptionVersion, error) {
	var version domain.TranscriptionVersion
	query := `
        SELECT * FROM transcription_versions
        WHERE asset_uuid = $1 AND supersedes = $2
        ORDER BY created_at DESC, id DESC
        LIMIT 1`

	err := r.db.GetContext(ctx, &version, query, assetUUID, versionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &version, nil
}

func (r *TranscriptionRepository) ContributorCount(ctx context.Context, assetUUID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(DISTINCT author_id) FROM transcription_versions WHERE asset_uuid = $1`

	err := r.db.GetContext(ctx, &count, query, assetUUID)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *TranscriptionRepository) StampSubmitted(ctx context.Context, versionID uuid.UUID, at time.Time) error {
	query := `UPDATE transcription_versions SET submitted_at = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, versionID, at)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *TranscriptionRepository) StampReview(
	ctx context.Context,
	versionID uuid.UUID,
	action domain.ReviewAction,
	reviewerID string,
	at time.Time,
) error {
	var query string
	switch action {
	case domain.ReviewAccept:
		query = `UPDATE transcription_versions SET accepted_at = $2, reviewed_by = $3 WHERE id = $1`
	case domain.ReviewReject:
		query = `UPDATE transcription_versions SET rejected_at = $2, reviewed_by = $3 WHERE id = $1`
	default:
		return fmt.Errorf("unknown review action: %s", action)
	}

	result, err := r.db.ExecContext(ctx, query, versionID, at, reviewerID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
