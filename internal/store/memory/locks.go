package memory

import (
	"context"
	"sync"
	"time"

	"github.com/duelhouse/duelengine/internal/domain"
)

// LockManager implements domain.LockManager with in-process mutex-backed
// keyed locks. It serves tests and the single-node memory mode; the redis
// lock manager covers multi-node deployments.
type LockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLockManager creates an empty in-process lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: map[string]bool{}}
}

// Acquire takes the keyed lock, returning domain.ErrLockHeld when it is
// already held. The TTL is ignored; in-process locks cannot leak past the
// process.
func (lm *LockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.held[key] {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = true

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(lm.held, key)
	}
	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)
