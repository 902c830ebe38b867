// Package registry keeps a record of indexing runs.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/zsiec/gre2g/internal/errors"
)

// Registry stores indexing runs.
type Registry interface {
	// Start records a new running run. Its id must be unused.
	Start(ctx context.Context, run *Run) error
	// Finish stores the final state of a started run.
	Finish(ctx context.Context, run *Run) error
	// Get retrieves a run by id.
	Get(ctx context.Context, id string) (*Run, error)
	// List returns all known runs, newest first.
	List(ctx context.Context) ([]*Run, error)
	// Close releases resources held by the registry.
	Close() error
}

// MemoryRegistry keeps runs for the lifetime of the process.
type MemoryRegistry struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{runs: make(map[string]Run)}
}

func (m *MemoryRegistry) Start(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return errors.NewAlreadyExistsError("run " + run.ID)
	}
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *MemoryRegistry) Finish(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return errors.NewNotFoundError("run " + run.ID)
	}
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *MemoryRegistry) Get(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, errors.NewNotFoundError("run " + id)
	}
	out := copyRun(&run)
	return &out, nil
}

func (m *MemoryRegistry) List(ctx context.Context) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		c := copyRun(&r)
		runs = append(runs, &c)
	}
	sortNewestFirst(runs)
	return runs, nil
}

func (m *MemoryRegistry) Close() error {
	return nil
}

func copyRun(r *Run) Run {
	c := *r
	c.RecordingPath = append([]string(nil), r.RecordingPath...)
	c.KeyFrames = append([]int(nil), r.KeyFrames...)
	return c
}

func sortNewestFirst(runs []*Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}
