// Package broker 实现两层密文存储：本地磁盘缓存 + 可选远端对象存储.
// 上传时密文先落本地，可选同步复制到远端；检索时本地命中直接返回，
// 未命中则从远端拉取回缓存. 同一密文的并发拉取由 singleflight 合并.
package broker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	s3c "github.com/yeisme/filevault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/filevault/pkg/log"
	"github.com/yeisme/filevault/pkg/metrics"
)

// ErrRemoteFetch 远端拉取失败（网络或对象缺失），与本地未找到可区分.
var ErrRemoteFetch = errors.New("remote fetch failed")

// ErrNotCached 本地没有副本且无远端可拉取.
var ErrNotCached = errors.New("ciphertext not available")

// remoteKeyPrefix 远端对象键前缀.
const remoteKeyPrefix = "encrypted/"

// RemoteKeyFor 计算 storedName 对应的远端对象键.
func RemoteKeyFor(storedName string) string {
	return remoteKeyPrefix + storedName
}

// Broker 两层密文存储代理.
type Broker struct {
	s3        *s3c.Client
	cache     *diskCache
	replicate bool
	sf        singleflight.Group
}

// Options 构造参数.
type Options struct {
	// CacheDir 本地密文缓存目录
	CacheDir string
	// MaxBytes 缓存容量上限，0 表示不限
	MaxBytes int64
	// TTL 空闲条目的保留时长，0 表示不按时间逐出
	TTL time.Duration
	// Replicate 上传时是否同步复制到远端
	Replicate bool
}

// New 构建 Broker 并恢复缓存目录中已有条目的记账.
// s3 可为 nil，此时退化为纯本地存储.
func New(s3 *s3c.Client, opts Options) (*Broker, error) {
	if err := os.MkdirAll(opts.CacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	b := &Broker{
		s3:        s3,
		cache:     newDiskCache(opts.CacheDir, opts.MaxBytes, opts.TTL),
		replicate: opts.Replicate && s3 != nil,
	}

	if err := b.restore(); err != nil {
		return nil, err
	}

	return b, nil
}

// restore 启动时扫描缓存目录，把已有密文重新登记进索引.
// 重启前的远端副本状态未知，保守地视为不可逐出，待下次访问确认.
func (b *Broker) restore() error {
	entries, err := os.ReadDir(b.cache.dir)
	if err != nil {
		return fmt.Errorf("scan cache dir: %w", err)
	}

	for _, de := range entries {
		if de.IsDir() {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}

		b.cache.entries[de.Name()] = &entry{
			size:     info.Size(),
			lastUsed: info.ModTime(),
		}
		b.cache.total += info.Size()
	}

	if len(b.cache.entries) > 0 {
		nlog.Logger().Info().Int("count", len(b.cache.entries)).Msg("ciphertext cache restored")
	}

	return nil
}

// Put 把密文文件收进本地缓存，可选复制到远端.
// 返回存放层级（local/remote）和远端对象键. src 被移动而非拷贝.
func (b *Broker) Put(ctx context.Context, storedName, src, contentType string) (location, remoteKey string, err error) {
	dst := b.cache.path(storedName)

	info, err := os.Stat(src)
	if err != nil {
		return "", "", fmt.Errorf("stat ciphertext: %w", err)
	}

	if err := os.Rename(src, dst); err != nil {
		// 跨文件系统时 rename 失败，退回拷贝
		if err := copyFile(src, dst); err != nil {
			return "", "", fmt.Errorf("store ciphertext: %w", err)
		}

		_ = os.Remove(src)
	}

	if !b.replicate {
		b.cache.add(storedName, info.Size(), false)

		return "local", "", nil
	}

	key := RemoteKeyFor(storedName)
	if err := b.s3.PutFile(ctx, key, dst, contentType); err != nil {
		// 远端失败时保留本地副本，文件仍可用
		nlog.Logger().Warn().Err(err).Str("key", key).Msg("remote replication failed, keeping local only")
		b.cache.add(storedName, info.Size(), false)

		return "local", "", nil
	}

	b.cache.add(storedName, info.Size(), true)

	return "remote", key, nil
}

// EnsureLocal 保证密文有本地副本并固定它，返回路径和释放函数.
// 调用方读取完毕必须调用 release，否则条目永不被逐出.
func (b *Broker) EnsureLocal(ctx context.Context, storedName, location, remoteKey string) (string, func(), error) {
	if b.cache.acquire(storedName) {
		metrics.CacheHits.Inc()

		// 重启后恢复的条目默认不可逐出，记录里标明有远端副本的在此确认
		if location == "remote" && remoteKey != "" {
			b.cache.markEvictable(storedName)
		}

		return b.cache.path(storedName), func() { b.cache.release(storedName) }, nil
	}

	if location != "remote" || remoteKey == "" || b.s3 == nil {
		return "", nil, fmt.Errorf("%w: %s", ErrNotCached, storedName)
	}

	metrics.CacheMisses.Inc()

	// 并发请求同一对象只拉取一次
	_, err, _ := b.sf.Do(storedName, func() (any, error) {
		if b.cache.acquire(storedName) {
			b.cache.release(storedName)

			return nil, nil
		}

		return nil, b.fetch(ctx, storedName, remoteKey)
	})
	if err != nil {
		return "", nil, err
	}

	if !b.cache.acquire(storedName) {
		return "", nil, fmt.Errorf("%w: %s", ErrNotCached, storedName)
	}

	return b.cache.path(storedName), func() { b.cache.release(storedName) }, nil
}

// fetch 从远端拉取密文到缓存. 先落临时文件再改名，避免半成品被读到.
func (b *Broker) fetch(ctx context.Context, storedName, remoteKey string) error {
	tmp := b.cache.path(storedName) + ".fetch"

	if err := b.s3.FetchToFile(ctx, remoteKey, tmp); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("%w: %s: %v", ErrRemoteFetch, remoteKey, err)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRemoteFetch, remoteKey, err)
	}

	if err := os.Rename(tmp, b.cache.path(storedName)); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("install fetched ciphertext: %w", err)
	}

	b.cache.add(storedName, info.Size(), true)

	return nil
}

// Exists 报告密文是否还能取到（本地或远端）.
func (b *Broker) Exists(ctx context.Context, storedName, location, remoteKey string) bool {
	if _, err := os.Stat(b.cache.path(storedName)); err == nil {
		return true
	}

	if location == "remote" && remoteKey != "" && b.s3 != nil {
		ok, err := b.s3.Exists(ctx, remoteKey)

		return err == nil && ok
	}

	return false
}

// Delete 删除本地与远端副本. 远端删除失败只告警，留给清理任务重试.
func (b *Broker) Delete(ctx context.Context, storedName, remoteKey string) {
	b.cache.remove(storedName)

	if remoteKey != "" && b.s3 != nil {
		if err := b.s3.Remove(ctx, remoteKey); err != nil {
			nlog.Logger().Warn().Err(err).Str("key", remoteKey).Msg("remove remote ciphertext failed")
		}
	}
}

// SweepIdle 逐出超过 TTL 未使用的缓存条目，供定时任务调用.
func (b *Broker) SweepIdle() int {
	return b.cache.sweepIdle(time.Now())
}

// CacheUsage 返回当前缓存占用字节数.
func (b *Broker) CacheUsage() int64 {
	return b.cache.usage()
}

// copyFile 拷贝文件内容，目标以 0600 创建.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0o600)
}
