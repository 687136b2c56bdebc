package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	server, client := newMiniredisClient(t)
	store := NewRedisStore(client, RedisConfig{Prefix: "test:cp:", TTL: time.Hour})
	ctx := context.Background()

	missing, err := store.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Save(ctx, sampleState("thread-1")))
	assert.True(t, server.Exists("test:cp:thread-1"))
	assert.Equal(t, time.Hour, server.TTL("test:cp:thread-1"))

	loaded, err := store.Load(ctx, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "thread-1", loaded.ThreadID)
	assert.Len(t, loaded.Messages, 2)
	assert.Equal(t, "IN", loaded.Records[0].CountryCode)
}

func TestRedisStoreSurfacesCorruptState(t *testing.T) {
	server, client := newMiniredisClient(t)
	store := NewRedisStore(client, RedisConfig{})
	require.NoError(t, server.Set("feed_agent:checkpoint:broken", "{not json"))

	_, err := store.Load(context.Background(), "broken")
	assert.Error(t, err)
}

func TestRedisStoreReportsUnavailableBackend(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()
	store := NewRedisStore(client, RedisConfig{})

	_, err := store.Load(context.Background(), "thread-1")
	assert.Error(t, err)
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	server, client := newMiniredisClient(t)
	locker := NewRedisLocker(client, RedisLockerConfig{PollInterval: 5 * time.Millisecond})

	release, err := locker.Lock(context.Background(), "thread-1")
	require.NoError(t, err)
	assert.True(t, server.Exists("feed_agent:lock:thread-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "thread-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	assert.False(t, server.Exists("feed_agent:lock:thread-1"))

	again, err := locker.Lock(context.Background(), "thread-1")
	require.NoError(t, err)
	again()
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	server, client := newMiniredisClient(t)
	locker := NewRedisLocker(client, RedisLockerConfig{TTL: time.Second})

	release, err := locker.Lock(context.Background(), "thread-1")
	require.NoError(t, err)

	server.FastForward(2 * time.Second)
	require.NoError(t, server.Set("feed_agent:lock:thread-1", "someone-else"))

	release()
	value, err := server.Get("feed_agent:lock:thread-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestRedisLockerLeaseOutlivesLongTurns(t *testing.T) {
	server, client := newMiniredisClient(t)
	turnTimeout := 5 * time.Minute
	locker := NewRedisLocker(client, RedisLockerConfig{
		TTL:          LeaseFor(turnTimeout),
		PollInterval: 5 * time.Millisecond,
	})

	release, err := locker.Lock(context.Background(), "thread-1")
	require.NoError(t, err)
	defer release()
	assert.Equal(t, turnTimeout+30*time.Second, server.TTL("feed_agent:lock:thread-1"))

	server.FastForward(turnTimeout - time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "thread-1")
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestRedisLockerRefreshesHeldLease(t *testing.T) {
	server, client := newMiniredisClient(t)
	locker := NewRedisLocker(client, RedisLockerConfig{TTL: 300 * time.Millisecond})

	release, err := locker.Lock(context.Background(), "thread-1")
	require.NoError(t, err)

	server.FastForward(250 * time.Millisecond)
	require.Eventually(t, func() bool {
		return server.TTL("feed_agent:lock:thread-1") > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	release()
	assert.False(t, server.Exists("feed_agent:lock:thread-1"))
}

func TestLeaseForDefaultsWithoutTimeout(t *testing.T) {
	assert.Equal(t, 2*time.Minute, LeaseFor(0))
	assert.Equal(t, 90*time.Second+30*time.Second, LeaseFor(90*time.Second))
}
