package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) KVStore {
	t.Helper()

	store, err := NewKVStore(context.Background(), KVTypeMemory, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestMemoryKVSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 0))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, store.Delete(ctx, "k1"))

	_, err = store.Get(ctx, "k1")
	assert.Error(t, err)
}

func TestMemoryKVGetMissingKey(t *testing.T) {
	store := newMemoryStore(t)

	_, err := store.Get(context.Background(), "absent")
	assert.Error(t, err)
}

// Get 返回的是副本，调用方修改不应影响存储的值.
func TestMemoryKVGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("abc"), 0))

	first, err := store.Get(ctx, "k")
	require.NoError(t, err)

	first[0] = 'X'

	second, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), second)
}

func TestMemoryKVSetCopiesValue(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	src := []byte("orig")
	require.NoError(t, store.Set(ctx, "k", src, 0))

	src[0] = 'X'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), got)
}

func TestMemoryKVTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	require.NoError(t, store.Set(ctx, "live", []byte("v"), time.Hour))

	got, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// 过期判定以秒为粒度，直接写入一个已经过期的包装值.
	mem, ok := store.(*MemoryKV)
	require.True(t, ok)

	encoded, wrapped, err := encodeWithTTL([]byte("stale"), time.Second)
	require.NoError(t, err)
	require.True(t, wrapped)
	mem.data.Store("dead", encoded)

	time.Sleep(1100 * time.Millisecond)

	_, err = store.Get(ctx, "dead")
	assert.Error(t, err)

	// 过期键在读取时被惰性删除.
	_, loaded := mem.data.Load("dead")
	assert.False(t, loaded)
}

func TestMemoryKVExists(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	exists, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

	exists, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryKVKeys(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	keys, err = store.Keys(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}

func TestTTLWrapperPassthrough(t *testing.T) {
	encoded, wrapped, err := encodeWithTTL([]byte("raw"), 0)
	require.NoError(t, err)
	assert.False(t, wrapped)
	assert.Equal(t, []byte("raw"), encoded)

	v, expired, wasWrapped, err := decodeWithTTL([]byte("raw"), time.Now())
	require.NoError(t, err)
	assert.False(t, expired)
	assert.False(t, wasWrapped)
	assert.Equal(t, []byte("raw"), v)
}

func TestTTLWrapperRoundTrip(t *testing.T) {
	encoded, wrapped, err := encodeWithTTL([]byte("payload"), time.Minute)
	require.NoError(t, err)
	require.True(t, wrapped)

	v, expired, wasWrapped, err := decodeWithTTL(encoded, time.Now())
	require.NoError(t, err)
	assert.True(t, wasWrapped)
	assert.False(t, expired)
	assert.Equal(t, []byte("payload"), v)

	// 以未来时间判定，应报告过期.
	_, expired, wasWrapped, err = decodeWithTTL(encoded, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, wasWrapped)
	assert.True(t, expired)
}

func TestUnsupportedKVType(t *testing.T) {
	_, err := NewKVStore(context.Background(), KVType("bogus"), nil)
	assert.Error(t, err)
}
