package entity

import (
	"context"
	"sort"
	"sync"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/sentinel"
)

// InMemoryStore keeps entities in a map guarded by a mutex. The version
// check-and-bump happens under the lock, mirroring the atomicity the
// conditional UPDATE gives the Postgres store.
type InMemoryStore struct {
	mu       sync.RWMutex
	entities map[id.EntityID]*Entity
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entities: make(map[id.EntityID]*Entity)}
}

func (s *InMemoryStore) Insert(_ context.Context, e *Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[e.ID]; exists {
		return sentinel.ErrDuplicateKey
	}
	s.entities[e.ID] = e.clone()
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, tenantID id.TenantID, entityID id.EntityID) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.entities[entityID]
	if !ok || stored.TenantID != tenantID || stored.Deleted() {
		return nil, sentinel.ErrNotFound
	}
	return stored.clone(), nil
}

func (s *InMemoryStore) List(_ context.Context, tenantID id.TenantID, entityType string, limit int) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Entity
	for _, stored := range s.entities {
		if stored.TenantID != tenantID || stored.Deleted() {
			continue
		}
		if entityType != "" && stored.Type != entityType {
			continue
		}
		matched = append(matched, stored.clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) UpdateVersioned(_ context.Context, e *Entity, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entities[e.ID]
	if !ok || stored.TenantID != e.TenantID || stored.Deleted() {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}

	updated := e.clone()
	updated.Version = expectedVersion + 1
	s.entities[e.ID] = updated
	e.Version = updated.Version
	return nil
}
