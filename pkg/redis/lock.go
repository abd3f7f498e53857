package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockPrefix namespaces job locks from other keys in a shared redis
const DefaultLockPrefix = "gymsync:lock:"

var (
	// ErrLockNotAcquired means another replica holds the lock
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld means the lock expired or was taken over before release
	ErrLockNotHeld = errors.New("lock not held")
)

// both scripts only touch the key while it still holds this owner's token
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Lock is one owner's hold on a key
type Lock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// Locker hands out single-holder locks so a job runs on one replica at a time
type Locker struct {
	client *Client
	prefix string
}

// NewLocker uses DefaultLockPrefix when prefix is empty
func NewLocker(client *Client, prefix string) *Locker {
	if prefix == "" {
		prefix = DefaultLockPrefix
	}
	return &Locker{client: client, prefix: prefix}
}

// Acquire returns ErrLockNotAcquired when the key is already held
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{client: l.client, key: l.prefix + key, token: uuid.NewString(), ttl: ttl}

	ok, err := l.client.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).WithField("lock", lock.key).Debug("Lock acquired")
	return lock, nil
}

// Renew pushes the expiry out by the lock's ttl
func (lock *Lock) Renew(ctx context.Context) error {
	return lock.run(ctx, renewScript, lock.ttl.Milliseconds())
}

func (lock *Lock) Release(ctx context.Context) error {
	return lock.run(ctx, releaseScript)
}

func (lock *Lock) run(ctx context.Context, script *redis.Script, args ...any) error {
	n, err := script.Run(ctx, lock.client.rdb, []string{lock.key}, append([]any{lock.token}, args...)...).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// WithLock runs fn while holding key, renewing the lease every third of ttl so
// a run that outlives ttl keeps its lock. The lock is released even when ctx is cancelled.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	lock, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		l.keepAlive(ctx, lock, done)
	}()

	defer func() {
		close(done)
		<-renewed

		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			l.client.logger.WithContext(ctx).WithError(err).WithField("lock", lock.key).Warn("Failed to release lock")
		}
	}()

	return fn(ctx)
}

func (l *Locker) keepAlive(ctx context.Context, lock *Lock, done <-chan struct{}) {
	interval := lock.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Renew(ctx); err != nil {
				l.client.logger.WithContext(ctx).WithError(err).WithField("lock", lock.key).Warn("Failed to renew lock")
				if errors.Is(err, ErrLockNotHeld) {
					return
				}
			}
		}
	}
}
