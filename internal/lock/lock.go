// Package lock serializes work per aggregate (user, withdrawal, manager).
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Locker acquires exclusive ownership of a key until the returned func is called.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Key builders. Acquire keys in this order to avoid lock cycles:
// withdrawal, then user, then manager.
func WithdrawalKey(id uint64) string { return fmt.Sprintf("withdrawal:%d", id) }
func UserKey(id uint64) string       { return fmt.Sprintf("user:%d", id) }
func ManagerKey(id uint64) string    { return fmt.Sprintf("manager:%d", id) }

// Acquire locks keys in order and returns a func releasing them in reverse.
// On failure every key already held is released.
func Acquire(ctx context.Context, l Locker, keys ...string) (func(), error) {
	held := make([]func(), 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, key := range keys {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, unlock)
	}
	return release, nil
}

// LocalLocker is an in-process keyed mutex whose waits honour ctx.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker constructs a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	l.mu.Lock()
	s := l.slots[key]
	if s == nil {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports the number of keys with waiters or owners.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
