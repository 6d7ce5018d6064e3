package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory ProductStore. It backs development and
// tests; deployments swap in a database-backed implementation behind
// the same interface.
type MemoryStore struct {
	mu         sync.RWMutex
	products   map[string]Product
	categories map[string]Category
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:   make(map[string]Product),
		categories: make(map[string]Category),
	}
}

func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Product
	for _, p := range s.products {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 20
	}

	start := (page - 1) * limit
	if start >= total {
		return []Product{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) Create(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.products[p.ID] = *p
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	p.ID = id
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	s.products[id] = *p
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Active = active
	p.UpdatedAt = time.Now()
	s.products[id] = p
	return nil
}

func (s *MemoryStore) Popular(_ context.Context, limit int) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Product
	for _, p := range s.products {
		if p.Active {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SoldCount > all[j].SoldCount })

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) Categories(_ context.Context) ([]Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) CreateCategory(_ context.Context, c *Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.categories[c.ID] = *c
	return nil
}

func (s *MemoryStore) Brands(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var brands []string
	for _, p := range s.products {
		if p.Brand == "" {
			continue
		}
		if _, ok := seen[p.Brand]; ok {
			continue
		}
		seen[p.Brand] = struct{}{}
		brands = append(brands, p.Brand)
	}
	sort.Strings(brands)
	return brands, nil
}
