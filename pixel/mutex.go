package pixel

import (
	"context"
	"sync"
)

// Mutex is a FIFO mutual-exclusion gate. Unlike sync.Mutex it
// guarantees waiters acquire in arrival order, which keeps concurrent
// Connect calls on the same die deterministic: the first caller builds
// the session, the rest observe it.
type Mutex struct {
	mu     sync.Mutex
	locked bool
	queue  []chan struct{}
}

// Lock acquires the mutex, blocking in FIFO order behind earlier
// callers. It returns the release capability; releasing more than
// once is a no-op.
func (m *Mutex) Lock(ctx context.Context) (func(), error) {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return m.releaseOnce(), nil
	}
	ticket := make(chan struct{})
	m.queue = append(m.queue, ticket)
	m.mu.Unlock()

	select {
	case <-ticket:
		return m.releaseOnce(), nil
	case <-ctx.Done():
		m.mu.Lock()
		for i, t := range m.queue {
			if t == ticket {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				m.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		m.mu.Unlock()
		// The ticket was granted while ctx fired; we own the lock and
		// must hand it on.
		m.release()
		return nil, ctx.Err()
	}
}

// Dispatch acquires the mutex, runs op, and always releases, whether
// op succeeds or fails.
func (m *Mutex) Dispatch(ctx context.Context, op func() error) error {
	release, err := m.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()
	return op()
}

func (m *Mutex) releaseOnce() func() {
	var once sync.Once
	return func() { once.Do(m.release) }
}

func (m *Mutex) release() {
	m.mu.Lock()
	if len(m.queue) > 0 {
		ticket := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		close(ticket)
		return
	}
	m.locked = false
	m.mu.Unlock()
}
