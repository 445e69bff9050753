package idempotency

import (
	"context"
	"sync"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/sentinel"
)

type receiptKey struct {
	tenantID id.TenantID
	key      string
	routeKey string
}

// InMemoryStore keeps receipts in a map guarded by a mutex. The map key is
// the same composite the Postgres unique constraint covers, so the duplicate
// detection behaves identically across backends.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts map[receiptKey]*Receipt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{receipts: make(map[receiptKey]*Receipt)}
}

func (s *InMemoryStore) Find(_ context.Context, tenantID id.TenantID, key, routeKey string) (*Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receipt, ok := s.receipts[receiptKey{tenantID: tenantID, key: key, routeKey: routeKey}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *receipt
	return &copied, nil
}

func (s *InMemoryStore) Insert(_ context.Context, receipt *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := receiptKey{tenantID: receipt.TenantID, key: receipt.Key, routeKey: receipt.RouteKey}
	if _, exists := s.receipts[k]; exists {
		return sentinel.ErrDuplicateKey
	}
	copied := *receipt
	s.receipts[k] = &copied
	return nil
}
