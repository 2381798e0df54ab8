package services

import (
	"context"
	"sort"
	"sync"
)

// KeyedMutex hands out one exclusive section per key. Entries are reference
// counted and dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until the section for key is free or ctx is done. The returned
// func releases the section; calling it more than once is a no-op.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { k.release(key, l) }) }, nil
	case <-ctx.Done():
		k.drop(key, l)
		return nil, ctx.Err()
	}
}

// LockAll acquires every distinct key in ascending order, so two callers with
// overlapping key sets cannot deadlock. On failure nothing stays held.
func (k *KeyedMutex) LockAll(ctx context.Context, keys []string) (func(), error) {
	sorted := uniqueSorted(keys)
	releases := make([]func(), 0, len(sorted))
	unlockAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, key := range sorted {
		release, err := k.Lock(ctx, key)
		if err != nil {
			unlockAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return unlockAll, nil
}

func (k *KeyedMutex) release(key string, l *keyLock) {
	<-l.ch
	k.drop(key, l)
}

func (k *KeyedMutex) drop(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// size is the number of live entries.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
