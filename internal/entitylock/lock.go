// Package entitylock serializes mutating operations per entity id.
//
// A lease is an exclusive grant on one (kind, id) pair. Waiters are queued
// first-come-first-served so a hot invoice cannot starve any caller, and
// every wait is bounded: a caller that does not get the lease in time
// receives ErrAcquireTimeout and is removed from the queue.
package entitylock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind names the entity namespace a lease applies to.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindInvoice  Kind = "invoice"
	KindSequence Kind = "sequence"
)

// ErrAcquireTimeout reports that the lease was not granted within the
// bounded wait. The operation was never started, so callers may retry.
var ErrAcquireTimeout = errors.New("entity lock acquire timeout")

type lockKey struct {
	kind Kind
	id   string
}

type waiter struct {
	grant chan struct{}
}

type entry struct {
	held    bool
	waiters []*waiter
}

// Manager is a keyed mutex registry with FIFO waiters.
type Manager struct {
	mu      sync.Mutex
	entries map[lockKey]*entry

	timeout time.Duration
	log     *zap.Logger
}

func NewManager(timeout time.Duration, log *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		entries: make(map[lockKey]*entry),
		timeout: timeout,
		log:     log.Named("entitylock"),
	}
}

// Lease is an exclusive grant on one entity id. Release must run on every
// exit path of the holding operation; it is safe to call more than once.
type Lease struct {
	m     *Manager
	key   lockKey
	token string
	once  sync.Once
}

func (l *Lease) Kind() Kind { return l.key.kind }
func (l *Lease) ID() string { return l.key.id }

func (l *Lease) Release() {
	l.once.Do(func() {
		l.m.release(l.key)
		l.m.log.Debug("lease released",
			zap.String("kind", string(l.key.kind)),
			zap.String("id", l.key.id),
			zap.String("token", l.token),
		)
	})
}

// Acquire blocks until the caller holds the (kind, id) lease, the context
// is done, or the manager's timeout elapses.
func (m *Manager) Acquire(ctx context.Context, kind Kind, id string) (*Lease, error) {
	key := lockKey{kind: kind, id: id}
	start := time.Now()

	m.mu.Lock()
	e := m.entries[key]
	if e == nil {
		e = &entry{}
		m.entries[key] = e
	}
	if !e.held {
		e.held = true
		m.mu.Unlock()
		observeWait(kind, time.Since(start))
		return m.newLease(key), nil
	}

	w := &waiter{grant: make(chan struct{})}
	e.waiters = append(e.waiters, w)
	m.mu.Unlock()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	var cause error
	select {
	case <-w.grant:
		observeWait(kind, time.Since(start))
		return m.newLease(key), nil
	case <-ctx.Done():
		cause = ctx.Err()
	case <-timer.C:
		cause = ErrAcquireTimeout
	}

	// Either we are still queued, or the grant raced with the timeout.
	m.mu.Lock()
	for i, queued := range e.waiters {
		if queued == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			m.mu.Unlock()
			observeTimeout(kind)
			m.log.Warn("lease not acquired",
				zap.String("kind", string(kind)),
				zap.String("id", id),
				zap.Duration("waited", time.Since(start)),
				zap.Error(cause),
			)
			return nil, cause
		}
	}
	m.mu.Unlock()

	// The grant was already delivered, so the lease is ours; hand it to
	// the next waiter instead of keeping it past the deadline.
	m.release(key)
	observeTimeout(kind)
	return nil, cause
}

func (m *Manager) newLease(key lockKey) *Lease {
	return &Lease{m: m, key: key, token: uuid.NewString()}
}

func (m *Manager) release(key lockKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	if e == nil || !e.held {
		return
	}
	if len(e.waiters) > 0 {
		next := e.waiters[0]
		e.waiters = e.waiters[1:]
		close(next.grant) // ownership transfers, held stays true
		return
	}
	delete(m.entries, key)
}

// Ref identifies one entity for multi-entity acquisition.
type Ref struct {
	Kind Kind
	ID   string
}

// AcquireMany acquires leases in the fixed global order (customers before
// invoices, then by id) so that operations touching several entities
// cannot form a lock cycle. On failure every already-granted lease is
// released before returning.
func (m *Manager) AcquireMany(ctx context.Context, refs ...Ref) ([]*Lease, error) {
	ordered := make([]Ref, len(refs))
	copy(ordered, refs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Kind != ordered[j].Kind {
			return kindRank(ordered[i].Kind) < kindRank(ordered[j].Kind)
		}
		return ordered[i].ID < ordered[j].ID
	})

	leases := make([]*Lease, 0, len(ordered))
	for _, ref := range ordered {
		lease, err := m.Acquire(ctx, ref.Kind, ref.ID)
		if err != nil {
			ReleaseAll(leases)
			return nil, err
		}
		leases = append(leases, lease)
	}
	return leases, nil
}

// ReleaseAll releases in reverse acquisition order.
func ReleaseAll(leases []*Lease) {
	for i := len(leases) - 1; i >= 0; i-- {
		leases[i].Release()
	}
}

func kindRank(k Kind) int {
	switch k {
	case KindCustomer:
		return 0
	case KindInvoice:
		return 1
	default:
		return 2
	}
}
