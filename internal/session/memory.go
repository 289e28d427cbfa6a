package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
)

const defaultMaxEntries = 1024

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore keeps drafts in a bounded, expiring LRU inside the process. Drafts are stored
// serialized so callers never share mutable state with the store.
type MemoryStore struct {
	mu     sync.Mutex
	cache  *expirable.LRU[string, memoryEntry]
	logger *logrus.Logger
	now    func() time.Time
}

// NewMemoryStore creates an in-process store. cfg.TTL bounds how long any entry is retained;
// cfg.MaxEntries bounds the number of drafts.
func NewMemoryStore(cfg domain.SessionConfig, logger *logrus.Logger) *MemoryStore {
	size := cfg.MaxEntries
	if size <= 0 {
		size = defaultMaxEntries
	}
	return &MemoryStore{
		cache:  expirable.NewLRU[string, memoryEntry](size, nil, cfg.TTL),
		logger: logger,
		now:    time.Now,
	}
}

func (s *MemoryStore) put(id string, data *domain.SessionData, ttl time.Duration) error {
	payload, err := encode(data)
	if err != nil {
		return err
	}
	s.cache.Add(id, memoryEntry{payload: payload, expiresAt: s.now().Add(ttl)})
	return nil
}

// get returns the live entry; expired entries are dropped. Callers hold mu.
func (s *MemoryStore) get(id string) (*domain.SessionData, error) {
	entry, ok := s.cache.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		s.cache.Remove(id)
		return nil, domain.ErrSessionNotFound
	}
	return decode(entry.payload)
}

// Save stores a draft, replacing any previous one.
func (s *MemoryStore) Save(_ context.Context, id string, data *domain.SessionData, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(id, data, ttl)
}

// Get returns a copy of the draft or domain.ErrSessionNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// Update applies fn under the store lock.
func (s *MemoryStore) Update(_ context.Context, id string, ttl time.Duration, fn func(*domain.SessionData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.get(id)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return s.put(id, data, ttl)
}

// Delete removes a draft.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close drops every draft.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.WithField("sessions", s.cache.Len()).Debug("Closing in-memory session store")
	s.cache.Purge()
	return nil
}
