package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store. It backs tests and JSON enrollment
// dumps loaded from disk.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*Template // keyed by normalized name
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[string]*Template)}
}

// Add enrolls a template, replacing any previous template with the same
// normalized name.
func (s *MemoryStore) Add(t *Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[NormalizeName(t.Name)] = t
}

// Get returns the template for a name.
func (s *MemoryStore) Get(_ context.Context, name string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return t, nil
}

// List returns all templates ordered by name.
func (s *MemoryStore) List(_ context.Context) ([]*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Has reports whether an identity is enrolled.
func (s *MemoryStore) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.templates[NormalizeName(name)]
	return ok, nil
}

// enrollmentFile is the JSON layout of an enrollment dump on disk.
type enrollmentFile struct {
	Identities []struct {
		Name       string      `json:"name"`
		Embeddings [][]float32 `json:"embeddings"`
	} `json:"identities"`
}

// LoadFile builds a MemoryStore from a JSON enrollment dump. The dump is
// produced by the external enrollment workflow; this loader only checks
// template shape.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read enrollment file: %w", err)
	}
	var file enrollmentFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse enrollment file %s: %w", path, err)
	}

	store := NewMemoryStore()
	for _, id := range file.Identities {
		t, err := NewTemplate(id.Name, id.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("enrollment file %s: %w", path, err)
		}
		store.Add(t)
	}
	return store, nil
}
