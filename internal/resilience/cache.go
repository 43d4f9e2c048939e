package resilience

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Request is one outbound call routed through the resilience layer.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is what comes back from a worker's fetch.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

func (r *Response) ContentType() string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, "Content-Type") {
			return v
		}
	}
	return ""
}

type CacheEntry struct {
	Key      string
	Response *Response
	StoredAt time.Time
	Size     int64
	Hits     int64
}

// ResponseCache caches successful GET responses. Entries expire after the
// TTL; once aggregate size exceeds maxSize the oldest entry by insertion
// time is evicted first.
type ResponseCache struct {
	entries   map[string]*CacheEntry
	totalSize int64
	mu        sync.Mutex

	ttl          time.Duration
	maxSize      int64
	allowedTypes []string

	hits   int64
	misses int64
}

type CacheConfig struct {
	TTL     time.Duration
	MaxSize int64
	// Content-type prefixes eligible for caching.
	AllowedTypes []string
}

func NewResponseCache(cfg CacheConfig) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100 << 20 // 100 MiB
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = []string{"text/html", "text/plain", "application/json", "application/xml"}
	}

	return &ResponseCache{
		entries:      make(map[string]*CacheEntry),
		ttl:          cfg.TTL,
		maxSize:      cfg.MaxSize,
		allowedTypes: cfg.AllowedTypes,
	}
}

// Key builds the cache key from method, URL, and request headers. Header
// order is normalized so identical requests hash identically.
func Key(req *Request) string {
	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(req.URL)

	if len(req.Headers) > 0 {
		names := make([]string, 0, len(req.Headers))
		for k := range req.Headers {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			b.WriteByte('|')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(req.Headers[k])
		}
	}
	return b.String()
}

func (c *ResponseCache) Get(req *Request) (*Response, bool) {
	if !strings.EqualFold(req.Method, "GET") {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[Key(req)]
	if !ok {
		c.misses++
		return nil, false
	}

	if time.Since(entry.StoredAt) > c.ttl {
		c.removeLocked(entry)
		c.misses++
		return nil, false
	}

	entry.Hits++
	c.hits++
	return entry.Response, true
}

// Put stores a response when it is cacheable: GET, status below 400, and an
// allow-listed content type.
func (c *ResponseCache) Put(req *Request, resp *Response) {
	if !c.Cacheable(req, resp) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(req)
	if existing, ok := c.entries[key]; ok {
		c.removeLocked(existing)
	}

	entry := &CacheEntry{
		Key:      key,
		Response: resp,
		StoredAt: time.Now(),
		Size:     int64(len(resp.Body)),
	}
	c.entries[key] = entry
	c.totalSize += entry.Size

	for c.totalSize > c.maxSize && len(c.entries) > 1 {
		c.evictOldestLocked()
	}
}

func (c *ResponseCache) Cacheable(req *Request, resp *Response) bool {
	if !strings.EqualFold(req.Method, "GET") {
		return false
	}
	if resp == nil || resp.StatusCode >= 400 {
		return false
	}

	contentType := resp.ContentType()
	for _, allowed := range c.allowedTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func (c *ResponseCache) evictOldestLocked() {
	var oldest *CacheEntry
	for _, entry := range c.entries {
		if oldest == nil || entry.StoredAt.Before(oldest.StoredAt) {
			oldest = entry
		}
	}
	if oldest != nil {
		c.removeLocked(oldest)
	}
}

func (c *ResponseCache) removeLocked(entry *CacheEntry) {
	delete(c.entries, entry.Key)
	c.totalSize -= entry.Size
}

func (c *ResponseCache) Stats() (hits, misses int64, entries int, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries), c.totalSize
}
