package repository

import (
	"context"
	"sync"
	"time"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/apperror"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/entity"
)

type memoryEntry struct {
	session   entity.Session
	expiresAt time.Time
}

// MemorySessionRepository - the default session store. Everything lives in
// process memory and is gone on restart. Entries expire after ttl; expired
// ones are dropped lazily on read and swept by the cleanup loop.
type MemorySessionRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemorySessionRepository - an in-memory session store; ttl zero disables expiry.
func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (that *MemorySessionRepository) CreateOrUpdate(_ context.Context, session *entity.Session) error {
	entry := memoryEntry{session: *session}
	if that.ttl > 0 {
		entry.expiresAt = time.Now().Add(that.ttl)
	}

	that.mu.Lock()
	that.entries[session.ID] = entry
	that.mu.Unlock()

	return nil
}

func (that *MemorySessionRepository) GetByID(_ context.Context, id string) (*entity.Session, error) {
	that.mu.RLock()
	entry, ok := that.entries[id]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrSessionNotFound
	}

	if entry.expired(time.Now()) {
		that.mu.Lock()
		delete(that.entries, id)
		that.mu.Unlock()

		return nil, apperror.ErrSessionNotFound
	}

	session := entry.session

	return &session, nil
}

func (that *MemorySessionRepository) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	delete(that.entries, id)
	that.mu.Unlock()

	return nil
}

// StartCleanup - sweeps expired entries every interval until ctx is canceled.
func (that *MemorySessionRepository) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				that.sweep(time.Now())
			}
		}
	}()
}

func (that *MemorySessionRepository) sweep(now time.Time) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for id, entry := range that.entries {
		if entry.expired(now) {
			delete(that.entries, id)
		}
	}
}

func (that *memoryEntry) expired(now time.Time) bool {
	return !that.expiresAt.IsZero() && now.After(that.expiresAt)
}
