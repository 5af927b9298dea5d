package nutrition

import (
	"context"
	"sync"
)

type memoryRepo struct {
	mu     sync.RWMutex
	byKey  map[string]Food
	byName map[string]string
}

func NewMemoryRepo() Repository {
	return &memoryRepo{byKey: make(map[string]Food), byName: make(map[string]string)}
}

func (r *memoryRepo) FindByName(_ context.Context, name string) (*Food, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	f := r.byKey[key]
	return &f, nil
}

func (r *memoryRepo) Upsert(_ context.Context, foods []Food) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range foods {
		key := f.Key()
		if old, ok := r.byKey[key]; ok {
			delete(r.byName, old.Name)
		}
		r.byKey[key] = f
		r.byName[f.Name] = key
	}
	return len(foods), nil
}
