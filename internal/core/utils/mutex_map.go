package utils

import (
	"fmt"
	"sync"
)

// KeyedMutex serializes work per key while letting different keys proceed
// concurrently. Entries are dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	edit    sync.Mutex
	waiters map[string]int
	mutexes map[string]*sync.Mutex
	maxKeys int
}

func NewKeyedMutex(maxKeys int) *KeyedMutex {
	return &KeyedMutex{
		waiters: make(map[string]int),
		mutexes: make(map[string]*sync.Mutex),
		maxKeys: maxKeys,
	}
}

func (m *KeyedMutex) Lock(key string) error {
	m.edit.Lock()

	mu, ok := m.mutexes[key]
	if !ok {
		if len(m.mutexes) >= m.maxKeys {
			m.edit.Unlock()
			return fmt.Errorf("too many concurrent keys (max %d)", m.maxKeys)
		}
		mu = &sync.Mutex{}
		m.mutexes[key] = mu
	}
	m.waiters[key]++
	m.edit.Unlock()

	mu.Lock()
	return nil
}

func (m *KeyedMutex) Unlock(key string) error {
	m.edit.Lock()
	defer m.edit.Unlock()

	mu, ok := m.mutexes[key]
	if !ok {
		return fmt.Errorf("key %s is not locked", key)
	}

	mu.Unlock()
	m.waiters[key]--
	if m.waiters[key] == 0 {
		delete(m.mutexes, key)
		delete(m.waiters, key)
	}
	return nil
}

// WithLock runs fn while holding the lock for key.
func (m *KeyedMutex) WithLock(key string, fn func() error) error {
	if err := m.Lock(key); err != nil {
		return err
	}
	defer m.Unlock(key) //nolint:errcheck

	return fn()
}
