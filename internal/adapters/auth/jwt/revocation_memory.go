package jwt

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocationList guarda jti revocados con expiración; para dev y tests.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[tokenID] = l.now().Add(ttl)
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !l.now().Before(exp) {
		delete(l.entries, tokenID)
		return false, nil
	}
	return true, nil
}
