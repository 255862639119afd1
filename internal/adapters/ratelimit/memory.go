package ratelimit

import (
	"context"
	"sync"
	"time"

	"pet-clinical-history/internal/ports/ratelimit"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter es un contador de ventana fija por key, para un solo proceso.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, win time.Duration) (ratelimit.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		l.windows[key] = w
	}

	if w.count >= limit {
		return ratelimit.Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	return ratelimit.Result{Allowed: true, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}
