package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/sessionauth/internal"
)

// MemoryLedger keeps revocation entries in process memory with a periodic
// sweep deleting expired entries. Suitable for tests and single-process
// deployments; revocations are not visible to other processes.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryLedger returns a ledger sweeping expired entries every
// sweepInterval. A non-positive interval disables the background sweep;
// expired entries are then only dropped lazily on lookup.
func NewMemoryLedger(sweepInterval time.Duration) *MemoryLedger {
	l := &MemoryLedger{
		entries: make(map[string]time.Time),
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go l.sweepLoop(sweepInterval)
	}
	return l
}

// Record marks token revoked until expiresAt.
func (l *MemoryLedger) Record(_ context.Context, token string, expiresAt time.Time) error {
	if !expiresAt.After(time.Now()) {
		return nil
	}

	l.mu.Lock()
	l.entries[internal.HashToken(token)] = expiresAt
	l.mu.Unlock()
	return nil
}

// Contains reports whether token is currently revoked.
func (l *MemoryLedger) Contains(_ context.Context, token string) (bool, error) {
	key := internal.HashToken(token)

	l.mu.RLock()
	expiresAt, ok := l.entries[key]
	l.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if !expiresAt.After(time.Now()) {
		l.mu.Lock()
		delete(l.entries, key)
		l.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Close stops the background sweep. Safe to call more than once.
func (l *MemoryLedger) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *MemoryLedger) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep(time.Now())
		}
	}
}

func (l *MemoryLedger) sweep(now time.Time) {
	l.mu.Lock()
	for key, expiresAt := range l.entries {
		if !expiresAt.After(now) {
			delete(l.entries, key)
		}
	}
	l.mu.Unlock()
}
