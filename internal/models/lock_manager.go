package models

import (
	"slices"
	"strconv"
	"sync"
)

// LockManager hands out mutexes keyed by name so that operations touching the
// same account or product serialize while unrelated ones run in parallel.
type LockManager struct {
	locks    map[string]*sync.Mutex // Map of key → mutex
	mapMutex sync.Mutex             // Protects the map itself
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (lm *LockManager) get(key string) *sync.Mutex {
	lm.mapMutex.Lock()
	defer lm.mapMutex.Unlock()

	m := lm.locks[key]
	if m == nil {
		m = &sync.Mutex{}
		lm.locks[key] = m
	}
	return m
}

// Lock acquires every key in sorted order and returns the matching unlock.
// Sorting keeps two callers with overlapping keys from deadlocking.
func (lm *LockManager) Lock(keys ...string) (unlock func()) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := lm.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// AccountKey is the lock key of an account.
func AccountKey(id AccountID) string { return "account:" + strconv.FormatInt(int64(id), 10) }

// ProductKey is the lock key of a product.
func ProductKey(id ProductID) string { return "product:" + strconv.Itoa(int(id)) }
