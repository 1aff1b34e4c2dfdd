package keymutex

import "sync"

// KeyMutex provides one mutex per string key. All mutations to one auction
// (bid commit, extension, termination) serialize through the same key; there
// is no global lock across keys.
//
// Entries are created on demand and never removed. The key set is the auction
// catalogue, which is bounded and never shrinks.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// TryLock attempts a non-blocking claim on key. Returns false immediately if
// the key is held.
func (k *KeyMutex) TryLock(key string) bool {
	return k.get(key).TryLock()
}

// Lock blocks until the key is claimed.
func (k *KeyMutex) Lock(key string) {
	k.get(key).Lock()
}

// Unlock releases the claim on key.
func (k *KeyMutex) Unlock(key string) {
	k.get(key).Unlock()
}
