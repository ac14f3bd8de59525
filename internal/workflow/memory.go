package workflow

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps workflows in process. Used when DATABASE_URL is unset and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	items  []Workflow
}

// NewMemoryStore assigns ids in insertion order starting at 1.
func NewMemoryStore(seed ...Workflow) *MemoryStore {
	m := &MemoryStore{}
	for _, w := range seed {
		m.Add(w)
	}
	return m
}

// Add stores w and returns it with its assigned id. A non-zero id is kept.
func (m *MemoryStore) Add(w Workflow) Workflow {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == 0 {
		m.nextID++
		w.ID = m.nextID
	} else if w.ID > m.nextID {
		m.nextID = w.ID
	}
	m.items = append(m.items, w)
	sort.Slice(m.items, func(i, j int) bool { return m.items[i].ID < m.items[j].ID })
	return w
}

func (m *MemoryStore) FindAll(ctx context.Context) ([]Workflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Workflow, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *MemoryStore) Analytics(ctx context.Context) (Analytics, error) {
	all, err := m.FindAll(ctx)
	if err != nil {
		return Analytics{}, err
	}
	return ComputeAnalytics(all), nil
}
