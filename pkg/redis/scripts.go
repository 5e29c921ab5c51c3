package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// The window starts on the first hit, so INCR and PEXPIRE must land together
// or a crash between them leaves a counter that never resets.
const fixedWindowSource = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

const releaseIfOwnerSource = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const extendIfOwnerSource = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

var (
	fixedWindowScript    = redis.NewScript(fixedWindowSource)
	releaseIfOwnerScript = redis.NewScript(releaseIfOwnerSource)
	extendIfOwnerScript  = redis.NewScript(extendIfOwnerSource)
)

// FixedWindowAllow counts one hit against scope and reports whether the
// count is still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.cmd == nil {
		return false, 0, errNotInitialized
	}
	count, err := fixedWindowScript.Run(ctx, c.cmd, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// ReleaseIfOwner deletes key only while it still holds owner. It reports
// false when the key expired or was taken over.
func (c *Client) ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	n, err := releaseIfOwnerScript.Run(ctx, c.cmd, []string{key}, owner).Int64()
	return n == 1, err
}

// ExtendIfOwner pushes the TTL of key out to ttl while owner still holds it.
func (c *Client) ExtendIfOwner(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	n, err := extendIfOwnerScript.Run(ctx, c.cmd, []string{key}, owner, ttl.Milliseconds()).Int64()
	return n == 1, err
}
