package patient

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
)

// memoryRepo is a goroutine-safe in-process Repository used in development
// and tests.
type memoryRepo struct {
	mu      sync.RWMutex
	store   map[uuid.UUID]*Patient
	byLogin map[string]uuid.UUID
}

func NewMemoryRepo() Repository {
	return &memoryRepo{
		store:   make(map[uuid.UUID]*Patient),
		byLogin: make(map[string]uuid.UUID),
	}
}

func (r *memoryRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byLogin[p.LoginID]; taken {
		return ErrDuplicateLoginID
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.DietCharts == nil {
		p.DietCharts = []dietplan.Chart{}
	}
	r.store[p.ID] = p.clone()
	r.byLogin[p.LoginID] = p.ID
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

func (r *memoryRepo) GetByLoginID(_ context.Context, loginID string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byLogin[loginID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.store[id].clone(), nil
}

func (r *memoryRepo) LoginIDExists(_ context.Context, loginID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byLogin[loginID]
	return ok, nil
}

func (r *memoryRepo) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.store[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Apply(p.Input())
	existing.UpdatedAt = time.Now().UTC()
	p.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *memoryRepo) SetPasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return ErrNotFound
	}
	p.PasswordHash = hash
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepo) SetLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return ErrNotFound
	}
	p.LastLogin = &at
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byLogin, p.LoginID)
	delete(r.store, id)
	return nil
}

func (r *memoryRepo) ListByOwner(_ context.Context, addedBy string, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	var matched []*Patient
	for _, p := range r.store {
		if addedBy == "" || p.AddedBy == addedBy {
			matched = append(matched, p.clone())
		}
	}
	r.mu.RUnlock()

	// Newest first; ties on CreatedAt fall back to id so pages stay stable.
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})

	total := len(matched)
	if offset >= total {
		return []*Patient{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *memoryRepo) Charts(_ context.Context, id uuid.UUID) ([]dietplan.Chart, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.store[id]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return cloneCharts(p.DietCharts), p.ChartVersion, nil
}

func (r *memoryRepo) SaveCharts(_ context.Context, id uuid.UUID, charts []dietplan.Chart, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return 0, ErrNotFound
	}
	if p.ChartVersion != expectedVersion {
		return 0, ErrConcurrentModification
	}
	p.DietCharts = cloneCharts(charts)
	p.ChartVersion++
	p.UpdatedAt = time.Now().UTC()
	return p.ChartVersion, nil
}
