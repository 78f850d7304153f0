package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lead-wizard/internal/common/database"
	"lead-wizard/internal/lead/wizard"
	"lead-wizard/internal/models"
)

// Record is what survives a session: its registry entry and the last wizard
// snapshot.
type Record struct {
	Session models.WizardSession `json:"session"`
	State   wizard.Snapshot      `json:"state"`
}

// Store persists session records with a TTL.
type Store interface {
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	// Load returns nil when the session is unknown or expired.
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

func storeKey(id string) string {
	return "session:" + id
}

// RedisStore keeps records as JSON under "session:<id>".
type RedisStore struct {
	client *database.RedisClient
}

func NewRedisStore(client *database.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	if err := s.client.SetJSON(ctx, storeKey(rec.Session.ID), rec, ttl); err != nil {
		return fmt.Errorf("save session %s: %w", rec.Session.ID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Record, error) {
	var rec Record
	found, err := s.client.GetJSON(ctx, storeKey(id), &rec)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, storeKey(id)); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// MemoryStore is the store used when redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{rec: rec}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.records[rec.Session.ID] = e
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.records, id)
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
