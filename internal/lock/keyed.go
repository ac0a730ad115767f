package lock

import "sync"

// KeyedMutex serializes tasks that share a key while allowing tasks on
// different keys to run concurrently. Message Intake uses one keyed by
// remoteJID to get per-chat ordering (spec.md §4.7); the messages.upsert
// post-processing subscriber uses a second instance keyed by "p-"+chatID,
// a disjoint key space chosen specifically to avoid the self-deadlock
// described in spec.md §9 (the pipeline both publishes to and subscribes
// from its own event bus).
type KeyedMutex struct {
	mu      sync.Mutex
	waiters map[string]*waiter
}

type waiter struct {
	mu    sync.Mutex
	count int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{waiters: make(map[string]*waiter)}
}

// Lock blocks until no other caller holds the same key, then returns an
// unlock function. Callers must call unlock exactly once.
func (m *KeyedMutex) Lock(key string) func() {
	m.mu.Lock()
	w, ok := m.waiters[key]
	if !ok {
		w = &waiter{}
		m.waiters[key] = w
	}
	w.count++
	m.mu.Unlock()

	w.mu.Lock()

	return func() {
		w.mu.Unlock()

		m.mu.Lock()
		w.count--
		if w.count == 0 {
			delete(m.waiters, key)
		}
		m.mu.Unlock()
	}
}

// Do runs fn while holding the lock for key.
func (m *KeyedMutex) Do(key string, fn func()) {
	unlock := m.Lock(key)
	defer unlock()
	fn()
}

// RetryMutex serializes retry-receipt emission globally, so the key store
// never observes two concurrent prekey-consuming transactions (spec.md §5,
// "Ordering guarantees"). It is a named type rather than a bare sync.Mutex
// purely so call sites read as "the retry mutex" rather than "a mutex".
type RetryMutex struct {
	mu sync.Mutex
}

// NewRetryMutex creates an unlocked RetryMutex.
func NewRetryMutex() *RetryMutex {
	return &RetryMutex{}
}

// Do runs fn while holding the global retry mutex.
func (m *RetryMutex) Do(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}
