package repository

import (
	"context"
	"sync"

	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

var _ sdomain.Repository = (*Memory)(nil)

// Memory is a process-local repository for tests and database-less runs.
type Memory struct {
	mu   sync.RWMutex
	vals map[string]sdomain.Entry
}

func NewMemory() *Memory { return &Memory{vals: map[string]sdomain.Entry{}} }

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.vals[key]
	return e.Value, ok, nil
}

func (m *Memory) Upsert(_ context.Context, entries ...sdomain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.vals[e.Key] = e
	}
	return nil
}
