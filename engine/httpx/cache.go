package httpx

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const cacheShards = 64

// Cache is a sharded, lock-tolerant on-disk response cache. Only GET
// responses are stored. Each shard is a JSON file guarded by its own
// mutex so concurrent callers contend only per shard. A shard that fails
// to decode is discarded and rebuilt; execution continues without cache.
type Cache struct {
	dir    string
	ttl    time.Duration
	shards [cacheShards]cacheShard
	now    func() time.Time
}

type cacheShard struct {
	mu      sync.Mutex
	entries map[string]cacheEntry // nil until loaded
}

type cacheEntry struct {
	Response Response  `json:"response"`
	Expires  time.Time `json:"expires"`
}

// NewCache creates the cache rooted at dir.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("httpx: create cache dir: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// CacheKey builds the deterministic key for a request: method, url, and
// sorted query params.
func CacheKey(method, rawURL string, params url.Values) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(rawURL)
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			vals := append([]string(nil), params[k]...)
			sort.Strings(vals)
			fmt.Fprintf(&b, " %s=%s", k, strings.Join(vals, ","))
		}
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) shardOf(key string) (*cacheShard, string) {
	// First byte pair of the hex key selects the shard.
	var n int
	fmt.Sscanf(key[:2], "%x", &n)
	idx := n % cacheShards
	return &c.shards[idx], filepath.Join(c.dir, fmt.Sprintf("shard-%02x.json", idx))
}

// load reads the shard file. Must hold the shard mutex. Corrupt files are
// dropped.
func (c *Cache) load(s *cacheShard, path string) {
	if s.entries != nil {
		return
	}
	s.entries = make(map[string]cacheEntry)
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		s.entries = make(map[string]cacheEntry)
		os.Remove(path)
	}
}

func (c *Cache) flush(s *cacheShard, path string) {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	os.Rename(tmp, path)
}

// Get returns the cached response for key, if present and unexpired.
func (c *Cache) Get(key string) (*Response, bool) {
	s, path := c.shardOf(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	c.load(s, path)
	e, ok := s.entries[key]
	if !ok || c.now().After(e.Expires) {
		if ok {
			delete(s.entries, key)
		}
		return nil, false
	}
	resp := e.Response
	return &resp, true
}

// Put stores a response under key with the cache TTL.
func (c *Cache) Put(key string, resp *Response) {
	s, path := c.shardOf(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	c.load(s, path)
	s.entries[key] = cacheEntry{Response: *resp, Expires: c.now().Add(c.ttl)}
	c.flush(s, path)
}

// Delete drops a single entry so the next Get refetches.
func (c *Cache) Delete(key string) {
	s, path := c.shardOf(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	c.load(s, path)
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	c.flush(s, path)
}

// Clear drops every shard. Mutating verbs call this.
func (c *Cache) Clear() {
	for i := range c.shards {
		s := &c.shards[i]
		path := filepath.Join(c.dir, fmt.Sprintf("shard-%02x.json", i))
		s.mu.Lock()
		s.entries = make(map[string]cacheEntry)
		os.Remove(path)
		s.mu.Unlock()
	}
}
