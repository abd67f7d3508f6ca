package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"specforge/internal/pattern"
)

// MemoryStore is an in-memory Store. Suggestion transitions are serialized
// by a single mutex, which gives the same compare-and-set semantics as the
// SQL implementation: only the first reviewer's decision lands.
type MemoryStore struct {
	mu          sync.Mutex
	patterns    map[string]*pattern.Pattern
	impls       map[string]*pattern.Implementation // key: name + "\x00" + language
	suggestions map[string]*pattern.Suggestion     // key: id
	byHash      map[string]string                  // signature hash -> id
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		patterns:    make(map[string]*pattern.Pattern),
		impls:       make(map[string]*pattern.Implementation),
		suggestions: make(map[string]*pattern.Suggestion),
		byHash:      make(map[string]string),
	}
}

func implKey(name, language string) string {
	return name + "\x00" + language
}

func (s *MemoryStore) InsertPattern(_ context.Context, p *pattern.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patterns[p.Name]; exists {
		return fmt.Errorf("pattern %q already exists", p.Name)
	}
	cp := *p
	s.patterns[p.Name] = &cp
	return nil
}

func (s *MemoryStore) GetPattern(_ context.Context, name string) (*pattern.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[name]
	if !ok {
		return nil, fmt.Errorf("pattern %q: %w", name, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPatterns(_ context.Context, category string) ([]*pattern.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*pattern.Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		if category != "" && p.Category != category {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpsertImplementation(_ context.Context, impl *pattern.Implementation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *impl
	s.impls[implKey(impl.PatternName, impl.Language)] = &cp
	return nil
}

func (s *MemoryStore) GetImplementation(_ context.Context, patternName, language string) (*pattern.Implementation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	impl, ok := s.impls[implKey(patternName, language)]
	if !ok {
		return nil, fmt.Errorf("implementation %s/%s: %w", patternName, language, ErrNotFound)
	}
	cp := *impl
	return &cp, nil
}

// InsertIfAbsent keeps discovery idempotent: the signature hash is the
// dedupe key across runs.
func (s *MemoryStore) InsertIfAbsent(_ context.Context, sg *pattern.Suggestion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byHash[sg.SignatureHash]; exists {
		return false, nil
	}
	cp := *sg
	s.suggestions[sg.ID] = &cp
	s.byHash[sg.SignatureHash] = sg.ID
	return true, nil
}

func (s *MemoryStore) GetSuggestion(_ context.Context, id string) (*pattern.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg, ok := s.suggestions[id]
	if !ok {
		return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	cp := *sg
	return &cp, nil
}

func (s *MemoryStore) ListPending(_ context.Context, limit int) ([]*pattern.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*pattern.Suggestion, 0)
	for _, sg := range s.suggestions {
		if sg.Status != pattern.StatusPending {
			continue
		}
		cp := *sg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountsByStatus(_ context.Context) (map[pattern.SuggestionStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[pattern.SuggestionStatus]int)
	for _, sg := range s.suggestions {
		counts[sg.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) Approve(_ context.Context, id string) (*pattern.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg, ok := s.suggestions[id]
	if !ok {
		return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	if sg.Status != pattern.StatusPending {
		return nil, &pattern.StaleSuggestionError{ID: id, Status: sg.Status}
	}

	p, impl := sg.Promote()
	if _, exists := s.patterns[p.Name]; exists {
		return nil, fmt.Errorf("pattern %q already exists", p.Name)
	}
	sg.Status = pattern.StatusApproved
	s.patterns[p.Name] = p
	s.impls[implKey(impl.PatternName, impl.Language)] = impl

	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Reject(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reason == "" {
		return fmt.Errorf("a rejection reason is required")
	}
	sg, ok := s.suggestions[id]
	if !ok {
		return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	if sg.Status != pattern.StatusPending {
		return &pattern.StaleSuggestionError{ID: id, Status: sg.Status}
	}
	sg.Status = pattern.StatusRejected
	sg.Reason = reason
	return nil
}
