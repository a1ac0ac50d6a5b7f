package programs

import (
	"context"
	"fmt"
	"sync"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

// MemoryStore keeps programs in process. It backs the console when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	programs map[string]models.Program
	order    []string // creation order, oldest first
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{programs: make(map[string]models.Program)}
}

func (m *MemoryStore) List(_ context.Context) ([]models.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Program, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.programs[m.order[i]].Clone())
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.programs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := p.Clone()
	return &out, nil
}

func (m *MemoryStore) Create(_ context.Context, p models.Program) (*models.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.programs[p.ID]; exists {
		return nil, fmt.Errorf("failed to create program: id %s already exists", p.ID)
	}
	m.put(p)
	out := p.Clone()
	return &out, nil
}

func (m *MemoryStore) Update(_ context.Context, p models.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.programs[p.ID]; !exists {
		return fmt.Errorf("failed to update program: %w", ErrNotFound)
	}
	m.put(p)
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, p models.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(p)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.programs[id]; !exists {
		return ErrNotFound
	}
	delete(m.programs, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) put(p models.Program) {
	if _, exists := m.programs[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	p = p.Clone()
	if p.Slots == nil {
		p.Slots = []models.Slot{}
	}
	m.programs[p.ID] = p
}
