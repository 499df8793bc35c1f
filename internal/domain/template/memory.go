package template

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soundimports/pricelens/internal/domain/layout"
)

// MemoryStore is an in-process TemplateStore and ProfileStore for tests and
// single-node runs. It clones on every boundary so callers can never reach
// the stored values, and it enforces the same revision CAS contract as the
// postgres store.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*Template
	profiles  map[string]*SupplierProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: map[string]*Template{},
		profiles:  map[string]*SupplierProfile{},
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %q: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.ID]; exists {
		return fmt.Errorf("template %q already exists", t.ID)
	}
	stored := t.Clone()
	stored.Revision = 1
	s.templates[t.ID] = stored
	t.Revision = 1
	return nil
}

func (s *MemoryStore) Update(_ context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.templates[t.ID]
	if !ok {
		return fmt.Errorf("template %q: %w", t.ID, ErrNotFound)
	}
	if current.Revision != t.Revision {
		return fmt.Errorf("template %q at revision %d, expected %d: %w",
			t.ID, current.Revision, t.Revision, ErrTemplateConflict)
	}
	stored := t.Clone()
	stored.Revision = t.Revision + 1
	s.templates[t.ID] = stored
	t.Revision = stored.Revision
	return nil
}

func (s *MemoryStore) ListCandidates(_ context.Context, supplierKey string) ([]*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Template
	for _, t := range s.templates {
		if t.SupplierKey == supplierKey || t.SupplierKey == GenericSupplier {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Prune(_ context.Context, unusedSince time.Time, maxSuccessRate float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, t := range s.templates {
		lastUsed := t.Performance.LastUsedAt
		if lastUsed.IsZero() {
			lastUsed = t.CreatedAt
		}
		if lastUsed.Before(unusedSince) && t.Performance.SuccessRate() < maxSuccessRate {
			delete(s.templates, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, supplierKey string) (*SupplierProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[supplierKey]
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", supplierKey, ErrNotFound)
	}
	return cloneProfile(p), nil
}

func (s *MemoryStore) UpsertProfile(_ context.Context, p *SupplierProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.SupplierKey] = cloneProfile(p)
	return nil
}

func cloneProfile(p *SupplierProfile) *SupplierProfile {
	out := *p
	out.TemplateSuccess = make(map[string]float64, len(p.TemplateSuccess))
	for k, v := range p.TemplateSuccess {
		out.TemplateSuccess[k] = v
	}
	out.LayoutCounts = make(map[layout.Type]int, len(p.LayoutCounts))
	for k, v := range p.LayoutCounts {
		out.LayoutCounts[k] = v
	}
	out.MethodCounts = make(map[string]int, len(p.MethodCounts))
	for k, v := range p.MethodCounts {
		out.MethodCounts[k] = v
	}
	return &out
}
