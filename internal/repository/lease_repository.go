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

type LeaseRepository struct {
	db *sqlx.DB
}

func NewLeaseRepository(db *sqlx.DB) *LeaseRepository {
	return &LeaseRepository{db: db}
}

// Get возвращает запись аренды, включая истёкшую — решение о её
// действительности принимает вызывающий. Отсутствие записи — (nil, nil).
func (r *LeaseRepository) Get(ctx context.Context, assetUUID uuid.UUID) (*domain.Lease, error) {
	var lease domain.Lease
	query := `SELECT * FROM leases WHERE asset_uuid = $1`

	err := r.db.GetContext(ctx, &lease, query, assetUUID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &lease, nil
}

// Put выполняет compare-and-set: захват проходит только если записи нет,
// запись принадлежит тому же держателю или уже истекла. Один оператор SQL,
// поэтому два конкурирующих захвата не могут выиграть одновременно.
func (r *LeaseRepository) Put(ctx context.Context, assetUUID uuid.UUID, holderID string, ttl time.Duration) (*domain.Lease, error) {
	query := `
        INSERT INTO leases (asset_uuid, holder_id, acquired_at, expires_at)
        VALUES ($1, $2, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP + $3 * INTERVAL '1 second')
        ON CONFLICT (asset_uuid) DO UPDATE SET
            holder_id = EXCLUDED.holder_id,
            acquired_at = CASE
                WHEN leases.holder_id = EXCLUDED.holder_id AND leases.expires_at > CURRENT_TIMESTAMP
                THEN leases.acquired_at
                ELSE EXCLUDED.acquired_at
            END,
            expires_at = GREATEST(leases.expires_at, EXCLUDED.expires_at)
        WHERE leases.holder_id = EXCLUDED.holder_id
           OR leases.expires_at <= CURRENT_TIMESTAMP
        RETURNING *`

	var lease domain.Lease
	err := r.db.GetContext(ctx, &lease, query, assetUUID, holderID, int64(ttl.Seconds()))
	if err != nil {
		if err == sql.ErrNoRows {
			// CAS не прошёл: живую аренду держит другой пользователь
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("failed to put lease: %w", err)
	}

	return &lease, nil
}

// Remove снимает аренду только если её держит указанный пользователь.
// Идемпотентно: отсутствие записи — не ошибка.
func (r *LeaseRepository) Remove(ctx context.Context, assetUUID uuid.UUID, holderID string) error {
	query := `DELETE FROM leases WHERE asset_uuid = $1 AND holder_id = $2`
	_, err := r.db.ExecContext(ctx, query, assetUUID, holderID)
	return err
}

// Clear снимает аренду независимо от держателя. Используется при приёме
// расшифровки, когда дальнейшие правки не ожидаются.
func (r *LeaseRepository) Clear(ctx context.Context, assetUUID uuid.UUID) error {
	query := `DELETE FROM leases WHERE asset_uuid = $1`
	_, err := r.db.ExecContext(ctx, query, assetUUID)
	return err
}

// DeleteExpired удаляет истёкшие записи. Чистка необязательна для
// корректности (истечение вычисляется при чтении), только для порядка в таблице.
func (r *LeaseRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM leases WHERE expires_at <= CURRENT_TIMESTAMP`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return rows, nil
}
