package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), UserKey(1))
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
	if n := l.held(); n != 0 {
		t.Fatalf("expected slots released, got %d", n)
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), WithdrawalKey(9))
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, WithdrawalKey(9)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLocalLockerDistinctKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	unlockA, err := l.Lock(context.Background(), UserKey(1))
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, ManagerKey(1))
	if err != nil {
		t.Fatalf("lock b: %v", err)
	}
	unlockB()
}

func TestAcquireReleasesHeldKeysOnFailure(t *testing.T) {
	l := NewLocalLocker()
	unlockMgr, err := l.Lock(context.Background(), ManagerKey(3))
	if err != nil {
		t.Fatalf("lock manager: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := Acquire(ctx, l, WithdrawalKey(1), UserKey(2), ManagerKey(3)); err == nil {
		t.Fatalf("expected acquire to time out")
	}
	unlockMgr()

	release, err := Acquire(context.Background(), l, WithdrawalKey(1), UserKey(2), ManagerKey(3))
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release()
	release()
	if n := l.held(); n != 0 {
		t.Fatalf("expected no held keys, got %d", n)
	}
}

func TestRedisLockerExclusive(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, 2*time.Second)
	key := "test:" + t.Name()
	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected contention timeout, got %v", err)
	}
	unlock()

	unlock2, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	unlock2()
}
