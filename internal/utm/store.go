package utm

import (
	"context"
	"errors"
	"sync"
	"time"

	"influencer-attribution-api/internal/cache"
	"influencer-attribution-api/internal/models"
)

// Store holds one visitor's first-touch record.
type Store interface {
	// Read returns nil with no error when nothing is stored.
	Read(ctx context.Context) (*models.AttributionTuple, error)
	// Write must never replace an existing record. It reports whether the
	// tuple was stored.
	Write(ctx context.Context, t models.AttributionTuple) (bool, error)
	Clear(ctx context.Context) error
}

// MemoryStore is a single-visitor Store held in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	record *models.AttributionTuple
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Read(ctx context.Context) (*models.AttributionTuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record == nil {
		return nil, nil
	}
	t := *s.record
	return &t, nil
}

func (s *MemoryStore) Write(ctx context.Context, t models.AttributionTuple) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record != nil {
		return false, nil
	}
	s.record = &t
	return true, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = nil
	return nil
}

// CacheStore keeps a visitor's record under a key of a shared cache.
// Writes go through SetIfAbsent so concurrent captures for the same visitor
// resolve to whichever landed first.
type CacheStore struct {
	cache cache.Cache
	key   string
}

// VisitorStore returns the Store for visitorID backed by c.
func VisitorStore(c cache.Cache, visitorID string) *CacheStore {
	return &CacheStore{cache: c, key: "first_touch:" + visitorID}
}

func (s *CacheStore) Read(ctx context.Context) (*models.AttributionTuple, error) {
	var t models.AttributionTuple
	err := cache.GetJSON(ctx, s.cache, s.key, &t)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *CacheStore) Write(ctx context.Context, t models.AttributionTuple) (bool, error) {
	return cache.SetJSONIfAbsent(ctx, s.cache, s.key, t, 0)
}

func (s *CacheStore) Clear(ctx context.Context) error {
	return s.cache.Delete(ctx, s.key)
}

// Repository is durable per-visitor storage for first-touch records.
// Insert must not replace an existing row.
type Repository interface {
	GetFirstTouch(ctx context.Context, visitorID string) (*models.AttributionTuple, error)
	InsertFirstTouch(ctx context.Context, visitorID string, t models.AttributionTuple, capturedAt time.Time) (bool, error)
	DeleteFirstTouch(ctx context.Context, visitorID string) error
}

// RepositoryStore adapts a Repository to one visitor's Store.
type RepositoryStore struct {
	repo      Repository
	visitorID string
	now       func() time.Time
}

// RepositoryVisitorStore returns the Store for visitorID backed by repo.
func RepositoryVisitorStore(repo Repository, visitorID string) *RepositoryStore {
	return &RepositoryStore{repo: repo, visitorID: visitorID, now: time.Now}
}

func (s *RepositoryStore) Read(ctx context.Context) (*models.AttributionTuple, error) {
	return s.repo.GetFirstTouch(ctx, s.visitorID)
}

func (s *RepositoryStore) Write(ctx context.Context, t models.AttributionTuple) (bool, error) {
	return s.repo.InsertFirstTouch(ctx, s.visitorID, t, s.now())
}

func (s *RepositoryStore) Clear(ctx context.Context) error {
	return s.repo.DeleteFirstTouch(ctx, s.visitorID)
}
