package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/google/uuid"
)

// ReservationOutcome — исход запроса на резервирование
type ReservationOutcome string

const (
	OutcomeGranted  ReservationOutcome = "granted"
	OutcomeConflict ReservationOutcome = "conflict"
	OutcomeExpired  ReservationOutcome = "expired"
)

type ReservationResult struct {
	Outcome ReservationOutcome `json:"outcome"`
	Lease   *domain.Lease      `json:"lease,omitempty"`
}

// ReservationService выдаёт, продлевает и снимает аренды на редактирование.
// Все захваты проходят через compare-and-set хранилища, поэтому два
// держателя не могут одновременно получить Granted по одному активу.
type ReservationService struct {
	leaseRepo LeaseStore
	ttl       time.Duration
	now       func() time.Time
}

func NewReservationService(leaseRepo LeaseStore, ttl time.Duration) *ReservationService {
	return &ReservationService{
		leaseRepo: leaseRepo,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Reserve выдаёт аренду либо сообщает, почему выдать нельзя.
//
// Granted  — аренды не было, либо вызывающий уже держит её (продление).
// Conflict — живую аренду держит другой пользователь.
// Expired  — собственная аренда вызывающего истекла; устаревшая запись
// снимается, и немедленный повторный Reserve получит Granted.
//
// Недоступность хранилища трактуется как Conflict (fail closed): лучше
// отказать в аренде, чем выдать непроверенную и получить двойное
// редактирование.
func (s *ReservationService) Reserve(ctx context.Context, assetUUID uuid.UUID, holderID string) (*ReservationResult, error) {
	lease, err := s.leaseRepo.Get(ctx, assetUUID)
	if err != nil {
		log.Printf("[Reserve] Lease store unavailable, failing closed: %v", err)
		return &ReservationResult{Outcome: OutcomeConflict}, nil
	}

	if lease != nil {
		if lease.HolderID == holderID && !lease.LiveAt(s.now()) {
			// Собственная аренда пропущена по TTL: снимаем устаревшую
			// запись и сигнализируем клиенту о повторном захвате
			if err := s.leaseRepo.Remove(ctx, assetUUID, holderID); err != nil {
				log.Printf("[Reserve] Failed to remove stale lease: %v", err)
				return &ReservationResult{Outcome: OutcomeConflict}, nil
			}
			return &ReservationResult{Outcome: OutcomeExpired}, nil
		}
		if lease.HolderID != holderID && lease.LiveAt(s.now()) {
			return &ReservationResult{Outcome: OutcomeConflict}, nil
		}
	}

	granted, err := s.leaseRepo.Put(ctx, assetUUID, holderID, s.ttl)
	if err != nil {
		if err == domain.ErrConflict {
			// Гонка с другим захватом: CAS не прошёл
			return &ReservationResult{Outcome: OutcomeConflict}, nil
		}
		log.Printf("[Reserve] Lease store unavailable, failing closed: %v", err)
		return &ReservationResult{Outcome: OutcomeConflict}, nil
	}

	return &ReservationResult{Outcome: OutcomeGranted, Lease: granted}, nil
}

// Release снимает аренду вызывающего. Идемпотентно: чужая или
// отсутствующая аренда не трогается и не считается ошибкой.
func (s *ReservationService) Release(ctx context.Context, assetUUID uuid.UUID, holderID string) error {
	if err := s.leaseRepo.Remove(ctx, assetUUID, holderID); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// CheckHolding проверяет, что вызывающий держит живую аренду на актив.
// Этой проверкой начинается каждая мутация цепочки версий.
func (s *ReservationService) CheckHolding(ctx context.Context, assetUUID uuid.UUID, holderID string) error {
	lease, err := s.leaseRepo.Get(ctx, assetUUID)
	if err != nil {
		return fmt.Errorf("%w: lease store unavailable: %v", domain.ErrConflict, err)
	}
	if lease == nil {
		return domain.ErrNoLease
	}
	if lease.HolderID != holderID {
		if lease.LiveAt(s.now()) {
			return domain.ErrConflict
		}
		return domain.ErrNoLease
	}
	if !lease.LiveAt(s.now()) {
		return domain.ErrExpired
	}
	return nil
}

// Clear снимает аренду независимо от держателя (приём расшифровки)
func (s *ReservationService) Clear(ctx context.Context, assetUUID uuid.UUID) error {
	return s.leaseRepo.Clear(ctx, assetUUID)
}

// CleanupExpired удаляет истёкшие записи аренды. Вызывается фоновым
// тикером; корректность от него не зависит.
func (s *ReservationService) CleanupExpired(ctx context.Context) error {
	removed, err := s.leaseRepo.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete expired leases: %w", err)
	}
	if removed > 0 {
		log.Printf("[CleanupExpired] Removed %d expired leases", removed)
	}
	return nil
}
