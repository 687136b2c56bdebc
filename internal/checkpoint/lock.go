package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes turns on the same thread. The returned release func
// must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, threadID string) (func(), error)
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Idle keys are dropped.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (m *KeyedMutex) Lock(ctx context.Context, threadID string) (func(), error) {
	m.mu.Lock()
	lock, ok := m.locks[threadID]
	if !ok {
		lock = &keyedLock{ch: make(chan struct{}, 1)}
		m.locks[threadID] = lock
	}
	lock.refs++
	m.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(threadID, lock, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(threadID, lock, true) })
	}, nil
}

func (m *KeyedMutex) release(threadID string, lock *keyedLock, held bool) {
	if held {
		<-lock.ch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, threadID)
	}
}

var ErrLockTimeout = errors.New("thread lock not acquired")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// leaseMargin covers the checkpoint save that runs after the turn deadline.
const leaseMargin = 30 * time.Second

// LeaseFor returns a lock TTL that outlives a turn bounded by turnTimeout.
func LeaseFor(turnTimeout time.Duration) time.Duration {
	if turnTimeout <= 0 {
		return 2 * time.Minute
	}
	return turnTimeout + leaseMargin
}

type RedisLockerConfig struct {
	Prefix string
	// TTL bounds how long a crashed holder can block the thread. Live
	// holders refresh it every TTL/3.
	TTL          time.Duration
	PollInterval time.Duration
}

// RedisLocker serializes turns across processes with SET NX PX.
type RedisLocker struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

func NewRedisLocker(client redis.UniversalClient, cfg RedisLockerConfig) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "feed_agent:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	return &RedisLocker{
		client:       client,
		prefix:       cfg.Prefix,
		ttl:          cfg.TTL,
		pollInterval: cfg.PollInterval,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, threadID string) (func(), error) {
	key := l.prefix + threadID
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("acquire thread lock: %w", err)
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	go l.keepAlive(key, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
		})
	}, nil
}

// keepAlive extends the lease until stop closes or the token no longer
// owns the key.
func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}) {
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		extended, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err == nil && extended == 0 {
			return
		}
	}
}
