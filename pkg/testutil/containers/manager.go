//go:build integration

// Package containers manages shared test containers for integration tests.
//
// Containers are expensive to start, so one of each kind is shared across
// every suite in the test binary. Ryuk reaps them when the binary exits,
// which is why nothing here registers t.Cleanup for the containers
// themselves. Suites are responsible for isolating their own state between
// tests (TruncateTables, FlushAll).
package containers

import "sync"

// Manager hands out shared container instances, starting each kind at most
// once per test binary.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	redpanda *RedpandaContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// GetPostgres returns the shared Postgres container, starting it on first use.
func (m *Manager) GetPostgres(t testingT) *PostgresContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
	}
	return m.postgres
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t testingT) *RedisContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}

// GetRedpanda returns the shared Redpanda container, starting it on first use.
func (m *Manager) GetRedpanda(t testingT) *RedpandaContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redpanda == nil {
		m.redpanda = NewRedpandaContainer(t)
	}
	return m.redpanda
}

// testingT is the subset of *testing.T the container constructors need.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}
