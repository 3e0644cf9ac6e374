package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxFailures = 5
	defaultLockout     = 15 * time.Minute
)

// recordFailure increments the counter and guarantees it carries a TTL. A key
// left without one (e.g. written by an older release) gets the window applied
// on its next failure instead of locking the account forever.
var recordFailure = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// LoginThrottle counts failed logins per username in Redis.
// Key format: login:failures:<username>, case preserved to match the
// credential store. The counter expires lockout after the first failure in a window.
type LoginThrottle struct {
	client      *redis.Client
	maxFailures int64
	lockout     time.Duration
}

// NewLoginThrottle creates a LoginThrottle wrapping the given Redis client.
// Non-positive arguments fall back to 5 failures per 15 minutes.
func NewLoginThrottle(client *redis.Client, maxFailures int, lockout time.Duration) *LoginThrottle {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if lockout <= 0 {
		lockout = defaultLockout
	}
	return &LoginThrottle{client: client, maxFailures: int64(maxFailures), lockout: lockout}
}

// Allowed reports whether username may attempt another login.
func (t *LoginThrottle) Allowed(ctx context.Context, username string) (bool, error) {
	n, err := t.client.Get(ctx, t.key(username)).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("throttle check: %w", err)
	}
	return n < t.maxFailures, nil
}

// RecordFailure increments the failure counter, starting the window on the
// first failure.
func (t *LoginThrottle) RecordFailure(ctx context.Context, username string) error {
	err := recordFailure.Run(ctx, t.client, []string{t.key(username)}, t.lockout.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("throttle record: %w", err)
	}
	return nil
}

// Reset clears the failure counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, username string) error {
	if err := t.client.Del(ctx, t.key(username)).Err(); err != nil {
		return fmt.Errorf("throttle reset: %w", err)
	}
	return nil
}

func (t *LoginThrottle) key(username string) string {
	return "login:failures:" + username
}
