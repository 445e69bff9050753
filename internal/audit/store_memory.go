package audit

import (
	"context"
	"sort"
	"sync"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
)

// InMemoryStore keeps audit entries in memory. Append-only: entries are
// copied on the way in and out so callers can never mutate stored history.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	if entry.FieldChanges != nil {
		stored.FieldChanges = make(FieldChanges, len(entry.FieldChanges))
		for field, change := range entry.FieldChanges {
			stored.FieldChanges[field] = change
		}
	}
	s.entries = append(s.entries, &stored)
	return nil
}

func (s *InMemoryStore) ListForTenant(_ context.Context, tenantID id.TenantID, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Entry
	for _, entry := range s.entries {
		if entry.TenantID == tenantID {
			copied := *entry
			matched = append(matched, &copied)
		}
	}
	// Newest first; stable sort keeps insertion order for equal timestamps.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
