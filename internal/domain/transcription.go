package domain

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptionVersion — неизменяемый снимок текста расшифровки.
// Версии образуют обратную цепочку через Supersedes; после создания
// меняются только отметки submitted_at/accepted_at/rejected_at.
type TranscriptionVersion struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	AssetUUID    uuid.UUID  `json:"asset_uuid" db:"asset_uuid"`
	Text         string     `json:"text" db:"text"`
	AuthorID     string     `json:"author_id" db:"author_id"`
	OCRGenerated bool       `json:"ocr_generated" db:"ocr_generated"`
	Supersedes   *uuid.UUID `json:"supersedes,omitempty" db:"supersedes"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	ReviewedBy   *string    `json:"reviewed_by,omitempty" db:"reviewed_by"`
}

// ReviewAction — действие рецензента над отправленной версией
type ReviewAction string

const (
	ReviewAccept ReviewAction = "accept"
	ReviewReject ReviewAction = "reject"
)

func (a ReviewAction) Valid() bool {
	return a == ReviewAccept || a == ReviewReject
}
