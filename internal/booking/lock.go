package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-demo-booking/internal/logger"
)

// ErrLockTimeout is returned when a session's booking lock could not be
// acquired before the wait expired.
var ErrLockTimeout = errors.New("timed out waiting for booking lock")

// Locker serializes bookings for one session across callers.
type Locker interface {
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

const pollInterval = 25 * time.Millisecond

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
	Wait   time.Duration
	Logger *logger.Logger
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{
		Client: client,
		TTL:    ttl,
		Wait:   wait,
		Logger: log,
	}
}

func lockKey(sessionID string) string {
	return "booking_lock:" + sessionID
}

// TryLock makes a single SET NX attempt and reports whether it won.
func (r *RedisLocker) TryLock(ctx context.Context, sessionID, token string) (bool, error) {
	return r.Client.SetNX(ctx, lockKey(sessionID), token, r.TTL).Result()
}

// Unlock releases the lock if token still owns it.
func (r *RedisLocker) Unlock(ctx context.Context, sessionID, token string) error {
	err := releaseScript.Run(ctx, r.Client, []string{lockKey(sessionID)}, token).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// Lock polls until the lock is acquired, ctx is done, or Wait elapses.
func (r *RedisLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(r.Wait)

	for {
		ok, err := r.TryLock(ctx, sessionID, token)
		if err != nil {
			return nil, fmt.Errorf("acquire booking lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			r.Logger.Warn("REDIS", fmt.Sprintf("Booking lock wait expired for session %s", sessionID))
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return func() {
		// release with a fresh context so a cancelled request still frees the key
		if err := r.Unlock(context.Background(), sessionID, token); err != nil {
			r.Logger.Error("REDIS", fmt.Sprintf("Failed to release booking lock for session %s: %v", sessionID, err))
		}
	}, nil
}

// LocalLocker is a per-session mutex for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localEntry)}
}

func (l *LocalLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionID, entry, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(sessionID, entry, true) })
	}, nil
}

func (l *LocalLocker) release(sessionID string, entry *localEntry, held bool) {
	if held {
		<-entry.ch
	}
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, sessionID)
	}
	l.mu.Unlock()
}
