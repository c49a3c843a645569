package correlate

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Table errors.
var (
	// ErrTimeout is delivered when no response arrives before the entry's deadline.
	ErrTimeout = errors.New("correlate: request timed out")

	// ErrDuplicateKey is returned by Enqueue when the key is already pending.
	ErrDuplicateKey = errors.New("correlate: duplicate key")

	// ErrClosed is returned by Enqueue after Close and delivered to entries
	// still pending when the table closes.
	ErrClosed = errors.New("correlate: table closed")

	// ErrCanceled is delivered to an entry removed with Cancel.
	ErrCanceled = errors.New("correlate: request canceled")
)

// Result is the outcome of one pending request: either the matched value
// or an error.
type Result[V any] struct {
	Value V
	Err   error
}

type entry[V any] struct {
	ch    chan Result[V]
	timer *time.Timer
	done  atomic.Bool
}

// resolve delivers r at most once.
func (e *entry[V]) resolve(r Result[V]) bool {
	if !e.done.CompareAndSwap(false, true) {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.ch <- r
	return true
}

// Table matches responses to pending requests by key.
//
// A request is registered with Enqueue before it is sent; the response
// path calls Match with the key extracted from the reply. Every entry is
// resolved exactly once: by Match, by its timeout, by Cancel or by Close.
// Result channels are buffered, so resolving never blocks on the waiter.
type Table[K comparable, V any] struct {
	mu      sync.Mutex
	pending map[K]*entry[V]
	closed  bool

	// Statistics
	matched  atomic.Uint64
	timedOut atomic.Uint64
	missed   atomic.Uint64
}

// New creates an empty Table.
func New[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{
		pending: make(map[K]*entry[V]),
	}
}

// Enqueue registers key and returns the channel its Result is delivered on.
// A timeout of zero or less means the entry waits until matched, canceled
// or closed.
func (t *Table[K, V]) Enqueue(key K, timeout time.Duration) (<-chan Result[V], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if _, ok := t.pending[key]; ok {
		return nil, ErrDuplicateKey
	}

	e := &entry[V]{ch: make(chan Result[V], 1)}
	t.pending[key] = e

	if timeout > 0 {
		e.timer = time.AfterFunc(timeout, func() {
			if t.remove(key, e) && e.resolve(Result[V]{Err: ErrTimeout}) {
				t.timedOut.Add(1)
			}
		})
	}
	return e.ch, nil
}

// Match delivers value to the entry waiting on key.
// It reports false when no entry is pending for key.
func (t *Table[K, V]) Match(key K, value V) bool {
	t.mu.Lock()
	e, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.mu.Unlock()

	if !ok || !e.resolve(Result[V]{Value: value}) {
		t.missed.Add(1)
		return false
	}
	t.matched.Add(1)
	return true
}

// Cancel removes the entry for key, delivering ErrCanceled to its waiter.
func (t *Table[K, V]) Cancel(key K) bool {
	t.mu.Lock()
	e, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.mu.Unlock()

	return ok && e.resolve(Result[V]{Err: ErrCanceled})
}

// Len returns the number of pending entries.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close fails every pending entry with ErrClosed and rejects new ones.
// It is safe to call more than once.
func (t *Table[K, V]) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	pending := t.pending
	t.pending = make(map[K]*entry[V])
	t.mu.Unlock()

	for _, e := range pending {
		e.resolve(Result[V]{Err: ErrClosed})
	}
}

// remove deletes key if it still maps to e.
func (t *Table[K, V]) remove(key K, e *entry[V]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending[key] != e {
		return false
	}
	delete(t.pending, key)
	return true
}

// Stats is a snapshot of the table counters.
type Stats struct {
	Pending  int
	Matched  uint64
	TimedOut uint64
	Missed   uint64
}

// Stats returns a snapshot of the table counters.
func (t *Table[K, V]) Stats() Stats {
	return Stats{
		Pending:  t.Len(),
		Matched:  t.matched.Load(),
		TimedOut: t.timedOut.Load(),
		Missed:   t.missed.Load(),
	}
}
