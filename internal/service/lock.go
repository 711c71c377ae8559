package service

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// keyedMutex hands out one mutex per subscription ID so composite operations
// on the same subscription serialize while unrelated subscriptions proceed
// concurrently. Entries are never evicted; the cost per subscription ever
// touched is a single mutex.
type keyedMutex struct {
	mus sync.Map
}

// Lock acquires the mutex for key and returns the matching unlock
func (k *keyedMutex) Lock(key string) func() {
	v, _ := k.mus.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// LockAll acquires the mutexes for every key in sorted order so that
// overlapping multi-subscription operations cannot deadlock each other
func (k *keyedMutex) LockAll(keys []string) func() {
	uniq := lo.Uniq(keys)
	sort.Strings(uniq)

	unlocks := make([]func(), 0, len(uniq))
	for _, key := range uniq {
		unlocks = append(unlocks, k.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}
