// Package keylock provides per-key mutual exclusion so unrelated keys
// proceed concurrently while operations on the same key serialize.
package keylock

import "sync"

// KeyLock hands out one mutex per key. Mutexes are created lazily and
// kept for the process lifetime; the key spaces here (spot ids, license
// plates) are small.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{locks: map[string]*sync.Mutex{}}
}

// Lock acquires the mutex for key, creating it on first use.
func (k *KeyLock) Lock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
}

// Unlock releases the mutex for key. Unlocking a never-locked key
// panics, same as sync.Mutex.
func (k *KeyLock) Unlock(key string) {
	k.mu.Lock()
	m := k.locks[key]
	k.mu.Unlock()
	m.Unlock()
}
