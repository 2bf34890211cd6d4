package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// acquireLockScript sets the lock hash only if it does not exist.
// Returns 1 on success, 0 if already held.
var acquireLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
	return 0
end
redis.call("HSET", key, "holder", ARGV[1], "acquired", ARGV[2], "ttl", ARGV[3])
redis.call("EXPIRE", key, tonumber(ARGV[3]))
return 1
`)

// releaseLockScript deletes the lock if holder matches.
// Returns 1 on success, 0 on holder mismatch, -1 if no lock exists.
var releaseLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
	return -1
end
local current = redis.call("HGET", key, "holder")
if current ~= ARGV[1] then
	return 0
end
redis.call("DEL", key)
return 1
`)

// AcquireLock takes the upgrade lock for device on behalf of holder. The
// lock expires after ttl so a crashed run cannot hold it forever.
func (s *Store) AcquireLock(ctx context.Context, device, holder string, ttl time.Duration) error {
	secs := int(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	now := s.now().UTC().Format(time.RFC3339)
	result, err := acquireLockScript.Run(ctx, s.client, []string{lockKey(device)},
		holder, now, fmt.Sprintf("%d", secs)).Int()
	if err != nil {
		return fmt.Errorf("acquiring lock for %s: %w", device, err)
	}
	if result == 0 {
		return ErrDeviceLocked
	}
	return nil
}

// releaseTimeout bounds ReleaseLock once it is detached from the caller.
const releaseTimeout = 5 * time.Second

// ReleaseLock drops the lock if holder owns it. A missing lock is not an
// error. The release still runs when ctx is already cancelled, so an
// interrupted upgrade does not leave the device locked until the TTL expires.
func (s *Store) ReleaseLock(ctx context.Context, device, holder string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	result, err := releaseLockScript.Run(ctx, s.client, []string{lockKey(device)}, holder).Int()
	if err != nil {
		return fmt.Errorf("releasing lock for %s: %w", device, err)
	}
	if result == 0 {
		return fmt.Errorf("lock holder mismatch for %s", device)
	}
	return nil
}

// LockHolder returns the current holder and acquisition time, or ("", zero)
// if the device is not locked.
func (s *Store) LockHolder(ctx context.Context, device string) (string, time.Time, error) {
	vals, err := s.client.HGetAll(ctx, lockKey(device)).Result()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("getting lock holder for %s: %w", device, err)
	}
	if len(vals) == 0 {
		return "", time.Time{}, nil
	}
	acquired, _ := time.Parse(time.RFC3339, vals["acquired"])
	return vals["holder"], acquired, nil
}
