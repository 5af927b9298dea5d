package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks live patient sessions so they can be revoked before
// their tokens expire.
type SessionStore interface {
	Put(ctx context.Context, patientID, jti string, ttl time.Duration) error
	Exists(ctx context.Context, jti string) (bool, error)
	RevokeAll(ctx context.Context, patientID string) error
}

func sessionKey(jti string) string               { return "session:" + jti }
func patientSessionsKey(patientID string) string { return "patient_sessions:" + patientID }

// RedisSessionStore keeps one key per session with the token TTL and a
// per-patient set used for bulk revocation.
type RedisSessionStore struct {
	client redis.Cmdable
}

func NewRedisSessionStore(client redis.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, patientID, jti string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKey(jti), patientID, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if err := s.client.SAdd(ctx, patientSessionsKey(patientID), jti).Err(); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Exists(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, sessionKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return true, nil
}

func (s *RedisSessionStore) RevokeAll(ctx context.Context, patientID string) error {
	setKey := patientSessionsKey(patientID)
	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, jti := range members {
		if err := s.client.Del(ctx, sessionKey(jti)).Err(); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
	}
	return s.client.Del(ctx, setKey).Err()
}

// MemorySessionStore is a process-local SessionStore for development and
// tests.
type MemorySessionStore struct {
	mu        sync.Mutex
	now       func() time.Time
	expiry    map[string]time.Time
	byPatient map[string]map[string]struct{}
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		now:       time.Now,
		expiry:    make(map[string]time.Time),
		byPatient: make(map[string]map[string]struct{}),
	}
}

func (s *MemorySessionStore) Put(_ context.Context, patientID, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiry[jti] = s.now().Add(ttl)
	set, ok := s.byPatient[patientID]
	if !ok {
		set = make(map[string]struct{})
		s.byPatient[patientID] = set
	}
	set[jti] = struct{}{}
	return nil
}

func (s *MemorySessionStore) Exists(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[jti]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.expiry, jti)
		return false, nil
	}
	return true, nil
}

func (s *MemorySessionStore) RevokeAll(_ context.Context, patientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti := range s.byPatient[patientID] {
		delete(s.expiry, jti)
	}
	delete(s.byPatient, patientID)
	return nil
}
