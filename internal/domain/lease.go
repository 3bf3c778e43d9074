package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lease — исключительное право на редактирование одного актива.
// Инвариант: не более одной неистёкшей аренды на актив.
type Lease struct {
	AssetUUID  uuid.UUID `json:"asset_uuid" db:"asset_uuid"`
	HolderID   string    `json:"holder_id" db:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at" db:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
}

// LiveAt сообщает, действует ли аренда в момент now.
// Истечение вычисляется при чтении, фоновая чистка не обязательна.
func (l *Lease) LiveAt(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}
