package enhance

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultCacheSize  = 100
	fingerprintPrefix = 500
)

// Cache 是进程内的有界缓存，超过容量时淘汰最早写入的条目。
// 生命周期与进程相同，不做持久化；调度器与手动刷新可能并发运行，因此加锁。
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[uint64]string
	order   []uint64
}

// NewCache 创建缓存，max <= 0 时使用 100。
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{max: max, entries: make(map[uint64]string)}
}

// Fingerprint 由标题、描述长度与描述前缀计算缓存 key。
func Fingerprint(title, description string) uint64 {
	prefix := description
	if len(prefix) > fingerprintPrefix {
		prefix = prefix[:fingerprintPrefix]
	}
	d := xxhash.New()
	_, _ = d.WriteString(title)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.Itoa(len(description)))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(prefix)
	return d.Sum64()
}

// Get 读取缓存。
func (c *Cache) Get(key uint64) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put 写入缓存，已存在的 key 只更新值，不改变淘汰顺序。
func (c *Cache) Put(key uint64, value string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = value
	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len 返回条目数。
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
