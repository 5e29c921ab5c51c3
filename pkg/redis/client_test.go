package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mem := newMemCommands()
	client := &Client{cmd: mem}

	allowed, count, err := client.FixedWindowAllow(ctx, "match_request:u1", 2, time.Second)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Second, mem.ttl["se:rate_limit:match_request:u1"])

	allowed, count, err = client.FixedWindowAllow(ctx, "match_request:u1", 2, time.Second)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 2, count)
	require.Equal(t, 1, mem.expires, "window must not be extended by later hits")

	allowed, _, err = client.FixedWindowAllow(ctx, "match_request:u1", 2, time.Second)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, _, err = client.FixedWindowAllow(ctx, "match_request:u2", 2, time.Second)
	require.NoError(t, err)
	require.True(t, allowed, "scopes are counted separately")
}

func TestReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newMemCommands()}
	key := client.LockKey("cron")

	ok, err := client.SetNX(ctx, key, "owner-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "owner-2", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	released, err := client.ReleaseIfOwner(ctx, key, "owner-2")
	require.NoError(t, err)
	require.False(t, released)

	extended, err := client.ExtendIfOwner(ctx, key, "owner-1", 2*time.Minute)
	require.NoError(t, err)
	require.True(t, extended)

	released, err = client.ReleaseIfOwner(ctx, key, "owner-1")
	require.NoError(t, err)
	require.True(t, released)

	_, err = client.Get(ctx, key)
	require.True(t, IsNil(err))
}

func TestKeys(t *testing.T) {
	var keys Keys
	require.Equal(t, "se:idempotency:scope:id", keys.IdempotencyKey("scope", "id"))
	require.Equal(t, "se:rate_limit:match_request:user", keys.RateLimitKey("match_request:user"))
	require.Equal(t, "se:lock:cron", keys.LockKey("cron"))
	require.Equal(t, "se:idempotency:scope", keys.IdempotencyKey("scope", ""))
	require.Equal(t, "se:idempotency:scope:id", keys.IdempotencyKey(" scope ", "id"))
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	require.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	_, _, err := client.FixedWindowAllow(context.Background(), "x", 1, time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DB: 5})
	require.NoError(t, err)
	require.Equal(t, 2, opts.DB, "url db wins over the discrete setting")
	require.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DialTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, time.Second, opts.DialTimeout)
}

// memCommands emulates the handful of commands and scripts the client uses.
type memCommands struct {
	data    map[string]string
	ttl     map[string]time.Duration
	expires int
	scripts map[string]string
}

func newMemCommands() *memCommands {
	m := &memCommands{
		data:    make(map[string]string),
		ttl:     make(map[string]time.Duration),
		scripts: make(map[string]string),
	}
	m.scripts[fixedWindowScript.Hash()] = fixedWindowSource
	m.scripts[releaseIfOwnerScript.Hash()] = releaseIfOwnerSource
	m.scripts[extendIfOwnerScript.Hash()] = extendIfOwnerSource
	return m
}

func (m *memCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memCommands) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			n++
		}
		delete(m.data, key)
		delete(m.ttl, key)
	}
	return redis.NewIntResult(n, nil)
}

func (m *memCommands) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return m.run(script, keys, args)
}

func (m *memCommands) EvalSha(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return m.run(m.scripts[sha], keys, args)
}

func (m *memCommands) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return m.Eval(ctx, script, keys, args...)
}

func (m *memCommands) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, sha, keys, args...)
}

func (m *memCommands) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	out := make([]bool, len(hashes))
	for i, h := range hashes {
		_, out[i] = m.scripts[h]
	}
	return redis.NewBoolSliceResult(out, nil)
}

func (m *memCommands) ScriptLoad(_ context.Context, script string) *redis.StringCmd {
	s := redis.NewScript(script)
	m.scripts[s.Hash()] = script
	return redis.NewStringResult(s.Hash(), nil)
}

func (m *memCommands) run(script string, keys []string, args []any) *redis.Cmd {
	key := keys[0]
	switch script {
	case fixedWindowSource:
		var count int64
		fmt.Sscan(m.data[key], &count)
		count++
		m.data[key] = fmt.Sprint(count)
		if count == 1 {
			m.ttl[key] = time.Duration(args[0].(int64)) * time.Millisecond
			m.expires++
		}
		return redis.NewCmdResult(count, nil)
	case releaseIfOwnerSource:
		if v, ok := m.data[key]; ok && v == args[0] {
			delete(m.data, key)
			delete(m.ttl, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	case extendIfOwnerSource:
		if v, ok := m.data[key]; ok && v == args[0] {
			m.ttl[key] = time.Duration(args[1].(int64)) * time.Millisecond
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unknown script"))
}
