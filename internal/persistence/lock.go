package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when a per-ticket lock could not be
// obtained within the caller's wait budget.
var ErrLockNotAcquired = errors.New("ticket lock not acquired")

// releaseScript deletes the lock only when the caller still owns it.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// TicketLocker serializes workflow runs per ticket. Exactly one run per
// ticket executes at a time; completion notifications queue up behind the
// lock and are processed in delivery order.
type TicketLocker interface {
	Acquire(ctx context.Context, ticketID string) (release func(), err error)
}

// RedisTicketLocker implements TicketLocker with SET NX PX and a
// token-checked release.
type RedisTicketLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewRedisTicketLocker builds a locker over the shared Redis client.
func NewRedisTicketLocker(r *Redis, ttl, wait time.Duration) *RedisTicketLocker {
	return &RedisTicketLocker{
		client: r.Client,
		ttl:    ttl,
		wait:   wait,
		poll:   50 * time.Millisecond,
	}
}

// Acquire blocks until the ticket lock is held or the wait budget runs out.
func (l *RedisTicketLocker) Acquire(ctx context.Context, ticketID string) (func(), error) {
	key := "lock:ticket:" + ticketID
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = l.client.Eval(ctx, releaseScript, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}
