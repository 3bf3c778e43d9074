package domain

import (
	"time"

	"github.com/google/uuid"
)

// Asset — единица расшифровки (одна отсканированная страница).
// Создаётся при загрузке каталога, никогда не удаляется ядром.
type Asset struct {
	UUID               uuid.UUID           `json:"uuid" db:"uuid"`
	Title              string              `json:"title" db:"title"`
	StorageKey         string              `json:"storage_key" db:"storage_key"`
	TranscriptionStatus TranscriptionStatus `json:"transcription_status" db:"transcription_status"`
	ActiveVersionID    *uuid.UUID          `json:"active_version_id,omitempty" db:"active_version_id"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}
