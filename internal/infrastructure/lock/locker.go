package lock

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker serializes work on entities identified by key.
//
// Acquire takes every key in ascending order, so two callers locking
// overlapping key sets can never wait on each other in a cycle. The returned
// release func unlocks in reverse order and is safe to call once.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// AccountKey is the lock key guarding one account's balances and counters.
func AccountKey(accountID string) string {
	return "paycore:lock:account:" + accountID
}

// PaymentKey is the lock key guarding one payment's state machine.
func PaymentKey(paymentID string) string {
	return "paycore:lock:payment:" + paymentID
}

// sortedKeys returns keys deduplicated in ascending order.
func sortedKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// In-process keyed mutex
// ============================================================================

type localEntry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is a keyed mutex for single-process deployments and tests.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

// NewLocalLocker returns an empty keyed mutex.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

// Acquire blocks until every key is held or ctx is done. On failure the
// keys taken so far are released before returning.
func (l *LocalLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := sortedKeys(keys)
	held := make([]string, 0, len(ordered))

	for _, key := range ordered {
		if err := l.lock(ctx, key); err != nil {
			l.unlockAll(held)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.unlockAll(held) }) }, nil
}

// lock takes one key. Entries are reference counted so an idle key does
// not linger in the map.
func (l *LocalLocker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, e, false)
		return ctx.Err()
	}
}

// unlockAll releases keys in reverse acquisition order.
func (l *LocalLocker) unlockAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[keys[i]]
		l.mu.Unlock()
		l.release(keys[i], e, true)
	}
}

func (l *LocalLocker) release(key string, e *localEntry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// ============================================================================
// Redis-backed locker
// ============================================================================

// RedisLocker acquires one DistributedLock per key for cross-process exclusion.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

// NewRedisLocker builds a locker whose keys expire after ttl. Acquire polls
// every retryInterval, at most maxRetries times per key.
func NewRedisLocker(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

// Acquire locks every key under one owner token. The release func uses a
// fresh context so locks are dropped even after the caller's ctx ended.
func (l *RedisLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := sortedKeys(keys)
	token := uuid.NewString()
	held := make([]*DistributedLock, 0, len(ordered))

	unlockAll := func() {
		// The caller context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Unlock(releaseCtx); err != nil {
				log.Printf("[RedisLocker] release %s failed: %v", held[i].key, err)
			}
		}
	}

	for _, key := range ordered {
		dl := NewDistributedLock(l.client, key, token, l.ttl)
		if err := dl.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
			unlockAll()
			return nil, err
		}
		held = append(held, dl)
	}

	var once sync.Once
	return func() { once.Do(unlockAll) }, nil
}
