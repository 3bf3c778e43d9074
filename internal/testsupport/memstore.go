// Package testsupport содержит хранилища в памяти для тестов сервисов и
// хендлеров. Семантика повторяет Postgres-репозитории: CAS при захвате
// аренды, guarded swap указателя активной версии, атомарная вставка версии.
package testsupport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/google/uuid"
)

// Clock — управляемые часы для тестов истечения аренды
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// MemLeaseStore — service.LeaseStore в памяти
type MemLeaseStore struct {
	mu     sync.Mutex
	leases map[uuid.UUID]domain.Lease
	clock  *Clock

	// Fail заставляет все операции возвращать ошибку — проверка fail closed
	Fail error
}

func NewMemLeaseStore(clock *Clock) *MemLeaseStore {
	return &MemLeaseStore{
		leases: make(map[uuid.UUID]domain.Lease),
		clock:  clock,
	}
}

func (s *MemLeaseStore) Get(ctx context.Context, assetUUID uuid.UUID) (*domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	lease, ok := s.leases[assetUUID]
	if !ok {
		return nil, nil
	}
	return &lease, nil
}

func (s *MemLeaseStore) Put(ctx context.Context, assetUUID uuid.UUID, holderID string, ttl time.Duration) (*domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}

	now := s.clock.Now()
	existing, ok := s.leases[assetUUID]
	if ok && existing.HolderID != holderID && now.Before(existing.ExpiresAt) {
		return nil, domain.ErrConflict
	}

	lease := domain.Lease{
		AssetUUID:  assetUUID,
		HolderID:   holderID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	if ok && existing.HolderID == holderID && now.Before(existing.ExpiresAt) {
		lease.AcquiredAt = existing.AcquiredAt
	}
	// Продление только удлиняет аренду
	if ok && existing.ExpiresAt.After(lease.ExpiresAt) {
		lease.ExpiresAt = existing.ExpiresAt
	}

	s.leases[assetUUID] = lease
	return &lease, nil
}

func (s *MemLeaseStore) Remove(ctx context.Context, assetUUID uuid.UUID, holderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if lease, ok := s.leases[assetUUID]; ok && lease.HolderID == holderID {
		delete(s.leases, assetUUID)
	}
	return nil
}

func (s *MemLeaseStore) Clear(ctx context.Context, assetUUID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	delete(s.leases, assetUUID)
	return nil
}

func (s *MemLeaseStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return 0, s.Fail
	}
	now := s.clock.Now()
	var removed int64
	for id, lease := range s.leases {
		if !now.Before(lease.ExpiresAt) {
			delete(s.leases, id)
			removed++
		}
	}
	return removed, nil
}

// Len возвращает число записей аренды (для проверок в тестах)
func (s *MemLeaseStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leases)
}

// MemAssetStore — service.AssetStore в памяти
type MemAssetStore struct {
	mu     sync.Mutex
	assets map[uuid.UUID]domain.Asset
}

func NewMemAssetStore() *MemAssetStore {
	return &MemAssetStore{assets: make(map[uuid.UUID]domain.Asset)}
}

func (s *MemAssetStore) Create(ctx context.Context, asset *domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	s.assets[asset.UUID] = *asset
	return nil
}

func (s *MemAssetStore) GetByUUID(ctx context.Context, assetUUID uuid.UUID) (*domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[assetUUID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &asset, nil
}

func (s *MemAssetStore) SetActive(
	ctx context.Context,
	assetUUID uuid.UUID,
	versionID *uuid.UUID,
	status domain.TranscriptionStatus,
	expectedVersionID *uuid.UUID,
	expectedStatus domain.TranscriptionStatus,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setActiveLocked(assetUUID, versionID, status, expectedVersionID, expectedStatus)
}

func (s *MemAssetStore) setActiveLocked(
	assetUUID uuid.UUID,
	versionID *uuid.UUID,
	status domain.TranscriptionStatus,
	expectedVersionID *uuid.UUID,
	expectedStatus domain.TranscriptionStatus,
) error {
	asset, ok := s.assets[assetUUID]
	if !ok {
		return domain.ErrStaleVersion
	}
	if !uuidPtrEqual(asset.ActiveVersionID, expectedVersionID) || asset.TranscriptionStatus != expectedStatus {
		return domain.ErrStaleVersion
	}
	asset.ActiveVersionID = versionID
	asset.TranscriptionStatus = status
	asset.UpdatedAt = time.Now()
	s.assets[assetUUID] = asset
	return nil
}

// MemVersionStore — service.VersionStore в памяти. Держит ссылку на
// MemAssetStore: вставка версии и смена указателя атомарны, как в
// транзакции репозитория.
type MemVersionStore struct {
	mu       sync.Mutex
	versions map[uuid.UUID]domain.TranscriptionVersion
	assets   *MemAssetStore
	seq      int
	order    map[uuid.UUID]int
}

func NewMemVersionStore(assets *MemAssetStore) *MemVersionStore {
	return &MemVersionStore{
		versions: make(map[uuid.UUID]domain.TranscriptionVersion),
		assets:   assets,
		order:    make(map[uuid.UUID]int),
	}
}

func (s *MemVersionStore) AppendAndActivate(ctx context.Context, version *domain.TranscriptionVersion, expectedActive *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets.mu.Lock()
	defer s.assets.mu.Unlock()

	asset, ok := s.assets.assets[version.AssetUUID]
	if !ok {
		return domain.ErrNotFound
	}
	if !uuidPtrEqual(asset.ActiveVersionID, expectedActive) {
		return domain.ErrStaleVersion
	}

	version.CreatedAt = time.Now()
	s.seq++
	s.order[version.ID] = s.seq
	s.versions[version.ID] = *version

	asset.ActiveVersionID = &version.ID
	asset.TranscriptionStatus = domain.StatusInProgress
	asset.UpdatedAt = version.CreatedAt
	s.assets.assets[version.AssetUUID] = asset
	return nil
}

func (s *MemVersionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TranscriptionVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, ok := s.versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &version, nil
}

func (s *MemVersionStore) History(ctx context.Context, assetUUID uuid.UUID) ([]domain.TranscriptionVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.assets.GetByUUID(ctx, assetUUID)
	if err != nil {
		return nil, err
	}

	var chain []domain.TranscriptionVersion
	cursor := asset.ActiveVersionID
	for cursor != nil {
		version, ok := s.versions[*cursor]
		if !ok {
			break
		}
		chain = append(chain, version)
		cursor = version.Supersedes
	}
	return chain, nil
}

func (s *MemVersionStore) LatestSuccessor(ctx context.Context, assetUUID, versionID uuid.UUID) (*domain.TranscriptionVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []domain.TranscriptionVersion
	for _, version := range s.versions {
		if version.AssetUUID == assetUUID && version.Supersedes != nil && *version.Supersedes == versionID {
			candidates = append(candidates, version)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return s.order[candidates[i].ID] > s.order[candidates[j].ID]
	})
	return &candidates[0], nil
}

func (s *MemVersionStore) ContributorCount(ctx context.Context, assetUUID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	authors := make(map[string]bool)
	for _, version := range s.versions {
		if version.AssetUUID == assetUUID {
			authors[version.AuthorID] = true
		}
	}
	return len(authors), nil
}

func (s *MemVersionStore) StampSubmitted(ctx context.Context, versionID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, ok := s.versions[versionID]
	if !ok {
		return domain.ErrNotFound
	}
	version.SubmittedAt = &at
	s.versions[versionID] = version
	return nil
}

func (s *MemVersionStore) StampReview(ctx context.Context, versionID uuid.UUID, action domain.ReviewAction, reviewerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, ok := s.versions[versionID]
	if !ok {
		return domain.ErrNotFound
	}
	switch action {
	case domain.ReviewAccept:
		version.AcceptedAt = &at
	case domain.ReviewReject:
		version.RejectedAt = &at
	}
	version.ReviewedBy = &reviewerID
	s.versions[versionID] = version
	return nil
}

// Count возвращает общее число версий по активу, включая отброшенные ветки
func (s *MemVersionStore) Count(assetUUID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, version := range s.versions {
		if version.AssetUUID == assetUUID {
			n++
		}
	}
	return n
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
