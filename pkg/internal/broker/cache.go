package broker

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yeisme/filevault/pkg/metrics"
	nlog "github.com/yeisme/filevault/pkg/log"
)

// entry 缓存索引中的一项. refs>0 表示有进行中的读取，禁止逐出；
// evictable 为 false 的条目没有远端副本，本地是唯一拷贝，永不逐出.
type entry struct {
	size      int64
	lastUsed  time.Time
	refs      int
	evictable bool
}

// diskCache 本地密文缓存的有界索引. 磁盘文件本身由 Broker 读写，
// 索引负责容量记账、引用计数与 LRU/TTL 逐出决策.
type diskCache struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	ttl      time.Duration
	entries  map[string]*entry
	total    int64
}

func newDiskCache(dir string, maxBytes int64, ttl time.Duration) *diskCache {
	return &diskCache{
		dir:      dir,
		maxBytes: maxBytes,
		ttl:      ttl,
		entries:  make(map[string]*entry),
	}
}

// path 返回条目对应的磁盘路径.
func (c *diskCache) path(storedName string) string {
	return filepath.Join(c.dir, storedName)
}

// add 登记新落地的密文并在超容时触发逐出.
func (c *diskCache) add(storedName string, size int64, evictable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[storedName]; ok {
		c.total -= old.size
	}

	c.entries[storedName] = &entry{
		size:      size,
		lastUsed:  time.Now(),
		evictable: evictable,
	}
	c.total += size

	c.evictLocked()
}

// acquire 固定条目供读取，存在则引用计数加一并返回 true.
func (c *diskCache) acquire(storedName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[storedName]
	if !ok {
		return false
	}

	e.refs++
	e.lastUsed = time.Now()

	return true
}

// release 解除读取固定.
func (c *diskCache) release(storedName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[storedName]; ok && e.refs > 0 {
		e.refs--
	}
}

// markEvictable 远端副本确认后允许条目被逐出.
func (c *diskCache) markEvictable(storedName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[storedName]; ok {
		e.evictable = true
	}
}

// remove 删除条目与磁盘文件（删除文件时条目可能带引用，调用方保证安全）.
func (c *diskCache) remove(storedName string) {
	c.mu.Lock()
	if e, ok := c.entries[storedName]; ok {
		c.total -= e.size

		delete(c.entries, storedName)
	}
	c.mu.Unlock()

	_ = os.Remove(c.path(storedName))
}

// evictLocked 按 LRU 逐出可回收条目直到容量不超限. 调用方持锁.
func (c *diskCache) evictLocked() {
	if c.maxBytes <= 0 {
		return
	}

	for c.total > c.maxBytes {
		victim := ""

		var oldest time.Time

		for name, e := range c.entries {
			if e.refs > 0 || !e.evictable {
				continue
			}

			if victim == "" || e.lastUsed.Before(oldest) {
				victim = name
				oldest = e.lastUsed
			}
		}

		if victim == "" {
			// 所有条目都被引用或不可逐出，等下一轮
			return
		}

		c.evictOneLocked(victim)
	}
}

// evictOneLocked 移除单个条目并删除磁盘文件. 调用方持锁.
func (c *diskCache) evictOneLocked(storedName string) {
	e := c.entries[storedName]
	c.total -= e.size

	delete(c.entries, storedName)

	if err := os.Remove(c.path(storedName)); err != nil && !os.IsNotExist(err) {
		nlog.Logger().Warn().Err(err).Str("name", storedName).Msg("evict cache file failed")
	}

	metrics.CacheEvictions.Inc()
}

// sweepIdle 逐出超过 TTL 未使用的可回收条目，返回逐出数量.
func (c *diskCache) sweepIdle(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return 0
	}

	evicted := 0
	cutoff := now.Add(-c.ttl)

	for name, e := range c.entries {
		if e.refs > 0 || !e.evictable {
			continue
		}

		if e.lastUsed.Before(cutoff) {
			c.evictOneLocked(name)

			evicted++
		}
	}

	return evicted
}

// usage 返回当前记账字节数.
func (c *diskCache) usage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.total
}
