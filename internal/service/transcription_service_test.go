package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/LibraryOfCongress/concordia-sub000/internal/testsupport"
	"github.com/google/uuid"
)

type transcriptionFixture struct {
	svc          *TranscriptionService
	reservations *ReservationService
	assets       *testsupport.MemAssetStore
	versions     *testsupport.MemVersionStore
	leases       *testsupport.MemLeaseStore
	clock        *testsupport.Clock
	asset        uuid.UUID
}

func newTranscriptionFixture(t *testing.T) *transcriptionFixture {
	t.Helper()

	clock := testsupport.NewClock(time.Now())
	leases := testsupport.NewMemLeaseStore(clock)
	assets := testsupport.NewMemAssetStore()
	versions := testsupport.NewMemVersionStore(assets)

	reservations := NewReservationService(leases, testTTL)
	reservations.now = clock.Now

	svc := NewTranscriptionService(assets, versions, reservations, "http://localhost:2525")
	svc.now = clock.Now

	asset := &domain.Asset{
		UUID:                uuid.New(),
		Title:               "letter page 1",
		TranscriptionStatus: domain.StatusNotStarted,
	}
	if err := assets.Create(context.Background(), asset); err != nil {
		t.Fatalf("create asset: %v", err)
	}

	return &transcriptionFixture{
		svc:          svc,
		reservations: reservations,
		assets:       assets,
		versions:     versions,
		leases:       leases,
		clock:        clock,
		asset:        asset.UUID,
	}
}

func (f *transcriptionFixture) reserve(t *testing.T, holder string) {
	t.Helper()
	result, err := f.reservations.Reserve(context.Background(), f.asset, holder)
	if err != nil || result.Outcome != OutcomeGranted {
		t.Fatalf("reserve for %s: outcome=%v err=%v", holder, result.Outcome, err)
	}
}

func (f *transcriptionFixture) mustSave(t *testing.T, author, text string, supersedes *uuid.UUID) uuid.UUID {
	t.Helper()
	result, err := f.svc.Save(context.Background(), f.asset, author, text, supersedes)
	if err != nil {
		t.Fatalf("save %q: %v", text, err)
	}
	return result.VersionID
}

func (f *transcriptionFixture) status(t *testing.T) domain.TranscriptionStatus {
	t.Helper()
	asset, err := f.assets.GetByUUID(context.Background(), f.asset)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	return asset.TranscriptionStatus
}

func TestSaveFirstVersion(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")

	result, err := f.svc.Save(context.Background(), f.asset, "alice", "Hello", nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if f.status(t) != domain.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", f.status(t))
	}
	if result.UndoAvailable {
		t.Fatal("first version reports undo available")
	}
	if result.RedoAvailable {
		t.Fatal("fresh head reports redo available")
	}
	if result.ContributorCount != 1 {
		t.Fatalf("contributor count = %d, want 1", result.ContributorCount)
	}
	if !strings.Contains(result.SubmitURL, result.VersionID.String()) {
		t.Fatalf("submit URL %q does not reference version", result.SubmitURL)
	}
}

func TestSaveEmptyTextAllowed(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")

	// Пометка «нечего расшифровывать» — пустое сохранение
	if _, err := f.svc.Save(context.Background(), f.asset, "alice", "", nil); err != nil {
		t.Fatalf("empty save: %v", err)
	}
	if f.status(t) != domain.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", f.status(t))
	}
}

func TestSaveRequiresLease(t *testing.T) {
	f := newTranscriptionFixture(t)

	_, err := f.svc.Save(context.Background(), f.asset, "alice", "Hello", nil)
	if !errors.Is(err, domain.ErrNoLease) {
		t.Fatalf("save without lease: got %v, want ErrNoLease", err)
	}
}

func TestSaveExpiredLeaseThenReacquire(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "Hello", nil)

	// Аренда лапнула без продлений
	f.clock.Advance(testTTL + time.Second)

	_, err := f.svc.Save(context.Background(), f.asset, "alice", "Hello world", &v1)
	if !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("save with lapsed lease: got %v, want ErrExpired", err)
	}

	// Переоформляем аренду: сигнал expired, затем granted
	result, _ := f.reservations.Reserve(context.Background(), f.asset, "alice")
	if result.Outcome != OutcomeExpired {
		t.Fatalf("got %s, want expired", result.Outcome)
	}
	f.reserve(t, "alice")

	// Активная версия не менялась — сохранение проходит
	if _, err := f.svc.Save(context.Background(), f.asset, "alice", "Hello world", &v1); err != nil {
		t.Fatalf("save after re-acquire: %v", err)
	}
}

func TestSaveStaleSupersedesRejected(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "Hello", nil)
	f.mustSave(t, "alice", "Hello world", &v1)

	before := f.versions.Count(f.asset)

	// Вторая вкладка со старым указателем
	_, err := f.svc.Save(context.Background(), f.asset, "alice", "stale text", &v1)
	if !errors.Is(err, domain.ErrStaleVersion) {
		t.Fatalf("stale save: got %v, want ErrStaleVersion", err)
	}
	if f.versions.Count(f.asset) != before {
		t.Fatal("stale save created a version")
	}
}

func TestSubmitAcceptFlow(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "Hello", nil)

	status, err := f.svc.Submit(context.Background(), v1, "alice")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if status != domain.StatusSubmitted {
		t.Fatalf("status = %s, want submitted", status)
	}

	version, _ := f.versions.GetByID(context.Background(), v1)
	if version.SubmittedAt == nil {
		t.Fatal("submitted_at not stamped")
	}

	status, err = f.svc.Review(context.Background(), v1, domain.ReviewAccept, "bob")
	if err != nil {
		t.Fatalf("Review accept: %v", err)
	}
	if status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", status)
	}

	version, _ = f.versions.GetByID(context.Background(), v1)
	if version.AcceptedAt == nil || version.ReviewedBy == nil || *version.ReviewedBy != "bob" {
		t.Fatalf("accept stamps missing: %+v", version)
	}
	if f.leases.Len() != 0 {
		t.Fatal("lease not released after accept")
	}
}

func TestRejectReturnsToInProgress(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "Hello", nil)

	if _, err := f.svc.Submit(context.Background(), v1, "alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	status, err := f.svc.Review(context.Background(), v1, domain.ReviewReject, "bob")
	if err != nil {
		t.Fatalf("Review reject: %v", err)
	}
	if status != domain.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", status)
	}

	// Цепочка не тронута, новая версия не создана
	if f.versions.Count(f.asset) != 1 {
		t.Fatalf("reject created versions: %d", f.versions.Count(f.asset))
	}

	// Аренда осталась у автора — правки продолжаются без повторного захвата
	if err := f.reservations.CheckHolding(context.Background(), f.asset, "alice"); err != nil {
		t.Fatalf("author lost lease after reject: %v", err)
	}
	if _, err := f.svc.Save(context.Background(), f.asset, "alice", "Hello world", &v1); err != nil {
		t.Fatalf("save after reject: %v", err)
	}
}

func TestSelfReviewForbidden(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "Hello", nil)

	if _, err := f.svc.Submit(context.Background(), v1, "alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for _, action := range []domain.ReviewAction{domain.ReviewAccept, domain.ReviewReject} {
		if _, err := f.svc.Review(context.Background(), v1, action, "alice"); !errors.Is(err, domain.ErrSelfReview) {
			t.Fatalf("self %s: got %v, want ErrSelfReview", action, err)
		}
	}
}

func TestSubmitGuards(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "Hello", nil)

	// Отправить может только автор
	if _, err := f.svc.Submit(context.Background(), v1, "bob"); !errors.Is(err, domain.ErrNotAuthor) {
		t.Fatalf("submit by non-author: got %v, want ErrNotAuthor", err)
	}

	// Устаревший version_id отклоняется
	v2 := f.mustSave(t, "alice", "Hello world", &v1)
	if _, err := f.svc.Submit(context.Background(), v1, "alice"); !errors.Is(err, domain.ErrStaleVersion) {
		t.Fatalf("stale submit: got %v, want ErrStaleVersion", err)
	}

	// Повторная отправка невозможна
	if _, err := f.svc.Submit(context.Background(), v2, "alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), v2, "alice"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("double submit: got %v, want ErrInvalidTransition", err)
	}
}

func TestStatusClosure(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "Hello", nil)

	// Рецензия возможна только из submitted
	if _, err := f.svc.Review(context.Background(), v1, domain.ReviewAccept, "bob"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("accept from in_progress: got %v, want ErrInvalidTransition", err)
	}

	if _, err := f.svc.Submit(context.Background(), v1, "alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// В submitted сохранение запрещено
	if _, err := f.svc.Save(context.Background(), f.asset, "alice", "edit", &v1); !errors.Is(err, domain.ErrNotEditable) {
		t.Fatalf("save in submitted: got %v, want ErrNotEditable", err)
	}

	if _, err := f.svc.Review(context.Background(), v1, domain.ReviewAccept, "bob"); err != nil {
		t.Fatalf("Review: %v", err)
	}

	// completed — терминальный статус без промежуточного reject
	if _, err := f.svc.Save(context.Background(), f.asset, "alice", "edit", &v1); !errors.Is(err, domain.ErrNotEditable) {
		t.Fatalf("save in completed: got %v, want ErrNotEditable", err)
	}
	if _, err := f.svc.Review(context.Background(), v1, domain.ReviewReject, "bob"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("reject in completed: got %v, want ErrInvalidTransition", err)
	}
}

func TestUndoRedoWalk(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "one", nil)
	v2 := f.mustSave(t, "alice", "two", &v1)
	v3 := f.mustSave(t, "alice", "three", &v2)

	result, err := f.svc.Rollback(context.Background(), f.asset, "alice")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if result.VersionID != v2 || result.Text != "two" {
		t.Fatalf("rollback landed on %s %q, want v2", result.VersionID, result.Text)
	}
	if !result.UndoAvailable || !result.RedoAvailable {
		t.Fatalf("at v2: undo=%v redo=%v, want both", result.UndoAvailable, result.RedoAvailable)
	}

	result, err = f.svc.Rollback(context.Background(), f.asset, "alice")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if result.VersionID != v1 {
		t.Fatalf("rollback landed on %s, want v1", result.VersionID)
	}
	if result.UndoAvailable {
		t.Fatal("undo available at chain start")
	}

	// Откат дальше первой версии невозможен
	if _, err := f.svc.Rollback(context.Background(), f.asset, "alice"); !errors.Is(err, domain.ErrNoUndo) {
		t.Fatalf("rollback past start: got %v, want ErrNoUndo", err)
	}

	result, err = f.svc.Rollforward(context.Background(), f.asset, "alice")
	if err != nil {
		t.Fatalf("Rollforward: %v", err)
	}
	if result.VersionID != v2 {
		t.Fatalf("rollforward landed on %s, want v2", result.VersionID)
	}

	result, err = f.svc.Rollforward(context.Background(), f.asset, "alice")
	if err != nil {
		t.Fatalf("Rollforward: %v", err)
	}
	if result.VersionID != v3 {
		t.Fatalf("rollforward landed on %s, want v3", result.VersionID)
	}

	// На голове цепочки redo нет
	if _, err := f.svc.Rollforward(context.Background(), f.asset, "alice"); !errors.Is(err, domain.ErrNoRedo) {
		t.Fatalf("rollforward at head: got %v, want ErrNoRedo", err)
	}
}

func TestForkAbandonsRedoBranch(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "one", nil)
	f.mustSave(t, "alice", "two", &v1)

	if _, err := f.svc.Rollback(context.Background(), f.asset, "alice"); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	// Правка после отката форкает цепочку
	v3 := f.mustSave(t, "alice", "two prime", &v1)

	result, err := f.svc.Rollback(context.Background(), f.asset, "alice")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if result.VersionID != v1 {
		t.Fatalf("rollback landed on %s, want v1", result.VersionID)
	}

	// Redo ведёт в новую ветку, старая недостижима
	forward, err := f.svc.Rollforward(context.Background(), f.asset, "alice")
	if err != nil {
		t.Fatalf("Rollforward: %v", err)
	}
	if forward.VersionID != v3 || forward.Text != "two prime" {
		t.Fatalf("redo landed on %s %q, want fork head", forward.VersionID, forward.Text)
	}
}

func TestUndoRequiresLeaseAndEditableStatus(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "one", nil)
	f.mustSave(t, "alice", "two", &v1)

	if _, err := f.svc.Rollback(context.Background(), f.asset, "bob"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("rollback without lease: got %v, want ErrConflict", err)
	}

	head, _ := f.assets.GetByUUID(context.Background(), f.asset)
	if _, err := f.svc.Submit(context.Background(), *head.ActiveVersionID, "alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := f.svc.Rollback(context.Background(), f.asset, "alice"); !errors.Is(err, domain.ErrNotEditable) {
		t.Fatalf("rollback in submitted: got %v, want ErrNotEditable", err)
	}
}

func TestHistoryWalksChain(t *testing.T) {
	f := newTranscriptionFixture(t)
	f.reserve(t, "alice")
	v1 := f.mustSave(t, "alice", "one", nil)
	f.mustSave(t, "alice", "two", &v1)

	history, err := f.svc.History(context.Background(), f.asset)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Text != "two" || history[1].Text != "one" {
		t.Fatalf("history not most-recent-first: %q, %q", history[0].Text, history[1].Text)
	}
	if history[len(history)-1].Supersedes != nil {
		t.Fatal("chain does not terminate at supersedes=null")
	}
}
