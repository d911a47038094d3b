package broker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalBroker(t *testing.T, maxBytes int64, ttl time.Duration) *Broker {
	t.Helper()

	b, err := New(nil, Options{
		CacheDir: t.TempDir(),
		MaxBytes: maxBytes,
		TTL:      ttl,
	})
	require.NoError(t, err)

	return b
}

func stageCiphertext(t *testing.T, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "staged.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	return path
}

func TestRemoteKeyFor(t *testing.T) {
	assert.Equal(t, "encrypted/abc.bin", RemoteKeyFor("abc.bin"))
}

func TestPutLocalOnly(t *testing.T) {
	b := newLocalBroker(t, 0, 0)
	ctx := context.Background()

	src := stageCiphertext(t, []byte("ciphertext"))

	location, key, err := b.Put(ctx, "f1.bin", src, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "local", location)
	assert.Empty(t, key)

	// 暂存文件应被移走
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(b.cache.path("f1.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), data)
	assert.Equal(t, int64(len("ciphertext")), b.CacheUsage())
}

func TestEnsureLocalHit(t *testing.T) {
	b := newLocalBroker(t, 0, 0)
	ctx := context.Background()

	_, _, err := b.Put(ctx, "f1.bin", stageCiphertext(t, []byte("data")), "")
	require.NoError(t, err)

	path, release, err := b.EnsureLocal(ctx, "f1.bin", "local", "")
	require.NoError(t, err)
	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestEnsureLocalMissingWithoutRemote(t *testing.T) {
	b := newLocalBroker(t, 0, 0)

	_, _, err := b.EnsureLocal(context.Background(), "missing.bin", "local", "")
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestDeleteRemovesLocalCopy(t *testing.T) {
	b := newLocalBroker(t, 0, 0)
	ctx := context.Background()

	_, _, err := b.Put(ctx, "f1.bin", stageCiphertext(t, []byte("data")), "")
	require.NoError(t, err)

	b.Delete(ctx, "f1.bin", "")

	_, err = os.Stat(b.cache.path("f1.bin"))
	assert.True(t, os.IsNotExist(err))
	assert.Zero(t, b.CacheUsage())
}

func TestLocalOnlyEntriesNeverEvicted(t *testing.T) {
	// 容量远小于内容，但没有远端副本的条目不可逐出
	b := newLocalBroker(t, 4, 0)
	ctx := context.Background()

	_, _, err := b.Put(ctx, "f1.bin", stageCiphertext(t, []byte("0123456789")), "")
	require.NoError(t, err)

	_, err = os.Stat(b.cache.path("f1.bin"))
	assert.NoError(t, err)
}

func TestEvictionPrefersLRU(t *testing.T) {
	b := newLocalBroker(t, 10, 0)
	ctx := context.Background()

	_, _, err := b.Put(ctx, "old.bin", stageCiphertext(t, []byte("aaaaa")), "")
	require.NoError(t, err)
	_, _, err = b.Put(ctx, "new.bin", stageCiphertext(t, []byte("bbbbb")), "")
	require.NoError(t, err)

	// 标记两个条目都有远端副本，再触发超容
	b.cache.markEvictable("old.bin")
	b.cache.markEvictable("new.bin")

	// 访问 new.bin 刷新其 lastUsed
	_, release, err := b.EnsureLocal(ctx, "new.bin", "local", "")
	require.NoError(t, err)
	release()

	_, _, err = b.Put(ctx, "extra.bin", stageCiphertext(t, []byte("ccccc")), "")
	require.NoError(t, err)
	b.cache.markEvictable("extra.bin")

	_, err = os.Stat(b.cache.path("old.bin"))
	assert.True(t, os.IsNotExist(err), "oldest unreferenced entry should be evicted")

	_, err = os.Stat(b.cache.path("new.bin"))
	assert.NoError(t, err)
}

func TestPinnedEntriesSurviveEviction(t *testing.T) {
	b := newLocalBroker(t, 4, 0)
	ctx := context.Background()

	_, _, err := b.Put(ctx, "f1.bin", stageCiphertext(t, []byte("aaaaa")), "")
	require.NoError(t, err)
	b.cache.markEvictable("f1.bin")

	_, release, err := b.EnsureLocal(ctx, "f1.bin", "local", "")
	require.NoError(t, err)

	// 被引用期间触发容量逐出
	_, _, err = b.Put(ctx, "f2.bin", stageCiphertext(t, []byte("bbbbb")), "")
	require.NoError(t, err)

	_, statErr := os.Stat(b.cache.path("f1.bin"))
	assert.NoError(t, statErr, "pinned entry must not be evicted")

	release()
}

func TestSweepIdle(t *testing.T) {
	b := newLocalBroker(t, 0, time.Millisecond)
	ctx := context.Background()

	_, _, err := b.Put(ctx, "f1.bin", stageCiphertext(t, []byte("data")), "")
	require.NoError(t, err)
	b.cache.markEvictable("f1.bin")

	time.Sleep(5 * time.Millisecond)

	evicted := b.SweepIdle()
	assert.Equal(t, 1, evicted)

	_, err = os.Stat(b.cache.path("f1.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreExistingCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f1.bin"), []byte("data"), 0o600))

	b, err := New(nil, Options{CacheDir: dir})
	require.NoError(t, err)

	assert.Equal(t, int64(4), b.CacheUsage())

	path, release, err := b.EnsureLocal(context.Background(), "f1.bin", "local", "")
	require.NoError(t, err)
	defer release()

	assert.Equal(t, filepath.Join(dir, "f1.bin"), path)
}

func TestRestoredRemoteBackedEntryEvictableAfterAccess(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f1.bin"), []byte("data"), 0o600))

	b, err := New(nil, Options{CacheDir: dir, TTL: time.Millisecond})
	require.NoError(t, err)

	// 记录显示有远端副本的条目，访问一次后恢复可逐出状态
	_, release, err := b.EnsureLocal(context.Background(), "f1.bin", "remote", RemoteKeyFor("f1.bin"))
	require.NoError(t, err)
	release()

	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, b.SweepIdle())

	_, err = os.Stat(b.cache.path("f1.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestRestoredLocalOnlyEntryStaysPinned(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f1.bin"), []byte("data"), 0o600))

	b, err := New(nil, Options{CacheDir: dir, TTL: time.Millisecond})
	require.NoError(t, err)

	_, release, err := b.EnsureLocal(context.Background(), "f1.bin", "local", "")
	require.NoError(t, err)
	release()

	time.Sleep(5 * time.Millisecond)

	assert.Zero(t, b.SweepIdle())
}
