package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/google/uuid"
)

// TranscriptionService ведёт цепочку версий и машину статусов рецензирования.
// Каждая мутация перепроверяет две вещи: что вызывающий держит живую аренду
// (где она требуется) и что версия, над которой идёт действие, всё ещё
// активна — иначе две вкладки или истёкшая посреди правки аренда могли бы
// испортить цепочку.
type TranscriptionService struct {
	assetRepo    AssetStore
	versionRepo  VersionStore
	reservations *ReservationService
	baseURL      string
	now          func() time.Time
}

func NewTranscriptionService(
	assetRepo AssetStore,
	versionRepo VersionStore,
	reservations *ReservationService,
	baseURL string,
) *TranscriptionService {
	return &TranscriptionService{
		assetRepo:    assetRepo,
		versionRepo:  versionRepo,
		reservations: reservations,
		baseURL:      baseURL,
		now:          time.Now,
	}
}

type SaveResult struct {
	VersionID        uuid.UUID `json:"version_id"`
	SubmitURL        string    `json:"submit_url"`
	UndoAvailable    bool      `json:"undo_available"`
	RedoAvailable    bool      `json:"redo_available"`
	ContributorCount int       `json:"contributor_count"`
}

type RollResult struct {
	VersionID     uuid.UUID `json:"version_id"`
	Text          string    `json:"text"`
	UndoAvailable bool      `json:"undo_available"`
	RedoAvailable bool      `json:"redo_available"`
}

// Save создаёт новую версию, надстраивая её над supersedes. Пустой текст
// допустим — пометка «нечего расшифровывать» обрабатывается как обычное
// сохранение. Для статуса разницы нет.
func (s *TranscriptionService) Save(
	ctx context.Context,
	assetUUID uuid.UUID,
	authorID string,
	text string,
	supersedes *uuid.UUID,
) (*SaveResult, error) {
	return s.save(ctx, assetUUID, authorID, text, supersedes, false)
}

func (s *TranscriptionService) save(
	ctx context.Context,
	assetUUID uuid.UUID,
	authorID string,
	text string,
	supersedes *uuid.UUID,
	ocrGenerated bool,
) (*SaveResult, error) {
	asset, err := s.assetRepo.GetByUUID(ctx, assetUUID)
	if err != nil {
		return nil, err
	}

	if !asset.TranscriptionStatus.Editable() {
		return nil, domain.ErrNotEditable
	}

	if err := s.reservations.CheckHolding(ctx, assetUUID, authorID); err != nil {
		return nil, err
	}

	// Быстрая проверка указателя; AppendAndActivate перепроверит атомарно
	if !uuidPtrEqual(supersedes, asset.ActiveVersionID) {
		return nil, domain.ErrStaleVersion
	}

	version := &domain.TranscriptionVersion{
		ID:           uuid.New(),
		AssetUUID:    assetUUID,
		Text:         text,
		AuthorID:     authorID,
		OCRGenerated: ocrGenerated,
		Supersedes:   supersedes,
	}

	if err := s.versionRepo.AppendAndActivate(ctx, version, supersedes); err != nil {
		return nil, err
	}

	contributors, err := s.versionRepo.ContributorCount(ctx, assetUUID)
	if err != nil {
		log.Printf("[Save] Failed to count contributors: %v", err)
	}

	return &SaveResult{
		VersionID: version.ID,
		SubmitURL: fmt.Sprintf("%s/v1/transcriptions/%s/submit", s.baseURL, version.ID),
		// Откат ведёт на supersedes; свежая голова не оставляет ветки впереди
		UndoAvailable:    version.Supersedes != nil,
		RedoAvailable:    false,
		ContributorCount: contributors,
	}, nil
}

// Submit отправляет активную версию на рецензию. Разрешён только автору
// версии при живой аренде; устаревший version_id отклоняется.
func (s *TranscriptionService) Submit(ctx context.Context, versionID uuid.UUID, callerID string) (domain.TranscriptionStatus, error) {
	version, err := s.versionRepo.GetByID(ctx, versionID)
	if err != nil {
		return "", err
	}

	asset, err := s.assetRepo.GetByUUID(ctx, version.AssetUUID)
	if err != nil {
		return "", err
	}

	if asset.ActiveVersionID == nil || *asset.ActiveVersionID != versionID {
		return "", domain.ErrStaleVersion
	}
	if version.AuthorID != callerID {
		return "", domain.ErrNotAuthor
	}
	if err := s.reservations.CheckHolding(ctx, version.AssetUUID, callerID); err != nil {
		return "", err
	}
	if !domain.CanTransition(asset.TranscriptionStatus, domain.StatusSubmitted) {
		return "", domain.ErrInvalidTransition
	}

	err = s.assetRepo.SetActive(
		ctx,
		asset.UUID,
		asset.ActiveVersionID,
		domain.StatusSubmitted,
		asset.ActiveVersionID,
		asset.TranscriptionStatus,
	)
	if err != nil {
		return "", err
	}

	if err := s.versionRepo.StampSubmitted(ctx, versionID, s.now()); err != nil {
		log.Printf("[Submit] Failed to stamp version %s: %v", versionID, err)
	}

	return domain.StatusSubmitted, nil
}

// Review принимает или отклоняет отправленную версию. Саморецензирование
// запрещено. Приём завершает работу над активом и снимает аренду;
// отклонение возвращает статус in_progress, не трогая ни цепочку, ни
// аренду — живая аренда остаётся у исходного автора.
func (s *TranscriptionService) Review(
	ctx context.Context,
	versionID uuid.UUID,
	action domain.ReviewAction,
	reviewerID string,
) (domain.TranscriptionStatus, error) {
	if !action.Valid() {
		return "", fmt.Errorf("unknown review action: %s", action)
	}

	version, err := s.versionRepo.GetByID(ctx, versionID)
	if err != nil {
		return "", err
	}

	asset, err := s.assetRepo.GetByUUID(ctx, version.AssetUUID)
	if err != nil {
		return "", err
	}

	if asset.ActiveVersionID == nil || *asset.ActiveVersionID != versionID {
		return "", domain.ErrStaleVersion
	}
	if version.AuthorID == reviewerID {
		return "", domain.ErrSelfReview
	}

	var target domain.TranscriptionStatus
	switch action {
	case domain.ReviewAccept:
		target = domain.StatusCompleted
	case domain.ReviewReject:
		target = domain.StatusInProgress
	}

	if !domain.CanTransition(asset.TranscriptionStatus, target) {
		return "", domain.ErrInvalidTransition
	}

	err = s.assetRepo.SetActive(
		ctx,
		asset.UUID,
		asset.ActiveVersionID,
		target,
		asset.ActiveVersionID,
		asset.TranscriptionStatus,
	)
	if err != nil {
		return "", err
	}

	if err := s.versionRepo.StampReview(ctx, versionID, action, reviewerID, s.now()); err != nil {
		log.Printf("[Review] Failed to stamp version %s: %v", versionID, err)
	}

	if action == domain.ReviewAccept {
		// Дальнейшие правки не ожидаются; ошибка снятия не отменяет приём,
		// аренда в худшем случае истечёт сама
		if err := s.reservations.Clear(ctx, asset.UUID); err != nil {
			log.Printf("[Review] Failed to clear lease for asset %s: %v", asset.UUID, err)
		}
	}

	return target, nil
}

// Rollback сдвигает указатель активной версии на шаг назад по supersedes.
// Новых версий не создаёт: более поздняя версия остаётся в хранилище и
// доступна для Rollforward, пока форк её не отбросит.
func (s *TranscriptionService) Rollback(ctx context.Context, assetUUID uuid.UUID, callerID string) (*RollResult, error) {
	asset, active, err := s.editableActive(ctx, assetUUID, callerID)
	if err != nil {
		return nil, err
	}

	if active == nil || active.Supersedes == nil {
		return nil, domain.ErrNoUndo
	}

	err = s.assetRepo.SetActive(
		ctx,
		assetUUID,
		active.Supersedes,
		domain.StatusInProgress,
		asset.ActiveVersionID,
		asset.TranscriptionStatus,
	)
	if err != nil {
		return nil, err
	}

	return s.rollResult(ctx, assetUUID, *active.Supersedes)
}

// Rollforward сдвигает указатель на самого свежего преемника активной
// версии. После форка самым свежим всегда оказывается новая ветка.
func (s *TranscriptionService) Rollforward(ctx context.Context, assetUUID uuid.UUID, callerID string) (*RollResult, error) {
	asset, active, err := s.editableActive(ctx, assetUUID, callerID)
	if err != nil {
		return nil, err
	}

	if active == nil {
		return nil, domain.ErrNoRedo
	}

	successor, err := s.versionRepo.LatestSuccessor(ctx, assetUUID, active.ID)
	if err != nil {
		return nil, err
	}
	if successor == nil {
		return nil, domain.ErrNoRedo
	}

	err = s.assetRepo.SetActive(
		ctx,
		assetUUID,
		&successor.ID,
		domain.StatusInProgress,
		asset.ActiveVersionID,
		asset.TranscriptionStatus,
	)
	if err != nil {
		return nil, err
	}

	return s.rollResult(ctx, assetUUID, successor.ID)
}

// History возвращает цепочку версий от активной к первой.
// Ветки, отброшенные форком, в обход не попадают.
func (s *TranscriptionService) History(ctx context.Context, assetUUID uuid.UUID) ([]domain.TranscriptionVersion, error) {
	if _, err := s.assetRepo.GetByUUID(ctx, assetUUID); err != nil {
		return nil, err
	}
	return s.versionRepo.History(ctx, assetUUID)
}

// editableActive — общая для undo/redo проверка: актив существует, статус
// редактируемый, вызывающий держит живую аренду
func (s *TranscriptionService) editableActive(
	ctx context.Context,
	assetUUID uuid.UUID,
	callerID string,
) (*domain.Asset, *domain.TranscriptionVersion, error) {
	asset, err := s.assetRepo.GetByUUID(ctx, assetUUID)
	if err != nil {
		return nil, nil, err
	}

	if !asset.TranscriptionStatus.Editable() {
		return nil, nil, domain.ErrNotEditable
	}
	if err := s.reservations.CheckHolding(ctx, assetUUID, callerID); err != nil {
		return nil, nil, err
	}

	if asset.ActiveVersionID == nil {
		return asset, nil, nil
	}

	active, err := s.versionRepo.GetByID(ctx, *asset.ActiveVersionID)
	if err != nil {
		return nil, nil, err
	}

	return asset, active, nil
}

func (s *TranscriptionService) rollResult(ctx context.Context, assetUUID, newActiveID uuid.UUID) (*RollResult, error) {
	newActive, err := s.versionRepo.GetByID(ctx, newActiveID)
	if err != nil {
		return nil, err
	}

	successor, err := s.versionRepo.LatestSuccessor(ctx, assetUUID, newActiveID)
	if err != nil {
		return nil, err
	}

	return &RollResult{
		VersionID:     newActive.ID,
		Text:          newActive.Text,
		UndoAvailable: newActive.Supersedes != nil,
		RedoAvailable: successor != nil,
	}, nil
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
