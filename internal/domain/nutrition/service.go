package nutrition

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultCacheTTL      = 10 * time.Minute
	cacheCleanupInterval = 15 * time.Minute
)

// Service looks up foods by name. Hits are cached. Misses are not, so newly
// seeded foods show up immediately.
type Service struct {
	repo  Repository
	cache *cache.Cache
}

func NewService(repo Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{repo: repo, cache: cache.New(ttl, cacheCleanupInterval)}
}

func (s *Service) Lookup(ctx context.Context, name string) (*Food, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if hit, ok := s.cache.Get(name); ok {
		f := hit.(Food)
		return &f, nil
	}
	f, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(name, *f)
	return f, nil
}

// Seed loads foods into the store and drops cached entries they replace.
func (s *Service) Seed(ctx context.Context, foods []Food) (int, error) {
	var valid []Food
	for _, f := range foods {
		if strings.TrimSpace(f.Name) == "" {
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return 0, errors.New("no foods with a name to seed")
	}
	n, err := s.repo.Upsert(ctx, valid)
	if err != nil {
		return 0, err
	}
	for _, f := range valid {
		s.cache.Delete(strings.TrimSpace(f.Name))
	}
	return n, nil
}
