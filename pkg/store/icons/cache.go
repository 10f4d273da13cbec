// Package icons fetches service icons and keeps them in a bounded
// least-recently-used cache.
//
// Only successful fetches populate the cache: a failed fetch falls back to
// the original URL and is never stored, so a transient upstream outage cannot
// pin a failure placeholder under a real service's key.
package icons

import (
	"container/list"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const fetchTimeout = 5 * time.Second

// Payload is one cached icon: raw bytes plus content type.
type Payload struct {
	ContentType string
	Data        []byte
}

// DataURL encodes the payload as a base64 data URI.
func (p Payload) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", p.ContentType, base64.StdEncoding.EncodeToString(p.Data))
}

// Stats summarizes resident cache usage. TotalBytes is maintained
// incrementally; the distribution fields are computed over the resident
// entries (bounded by max count).
type Stats struct {
	Count       int
	TotalBytes  int64
	MinBytes    int64
	MaxBytes    int64
	MedianBytes int64
	AvgBytes    int64
}

type entry struct {
	name    string
	payload Payload
}

// Cache is a strict LRU keyed by service name. Inserting beyond the
// configured capacity evicts the single least-recently-accessed entry.
type Cache struct {
	mu         sync.Mutex
	maxCount   int
	index      map[string]*list.Element
	order      *list.List // front = most recently used
	totalBytes int64

	client *http.Client
	flight singleflight.Group
}

// NewCache creates a cache holding at most maxCount icons. maxCount must be
// positive.
func NewCache(maxCount int) *Cache {
	if maxCount < 1 {
		panic("icons: cache capacity must be positive")
	}
	return &Cache{
		maxCount: maxCount,
		index:    make(map[string]*list.Element),
		order:    list.New(),
		client:   &http.Client{Timeout: fetchTimeout},
	}
}

// Get returns the cached payload and marks the entry as most recently used.
func (c *Cache) Get(name string) (Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[name]
	if !ok {
		return Payload{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).payload, true
}

// Put inserts or replaces an entry, evicting the least-recently-used one
// when the insert would exceed capacity. Concurrent inserts of the same key
// are last-writer-wins; byte accounting stays consistent either way.
func (c *Cache) Put(name string, p Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[name]; ok {
		old := el.Value.(*entry)
		c.totalBytes += int64(len(p.Data)) - int64(len(old.payload.Data))
		old.payload = p
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxCount {
		c.evictOldest()
	}
	c.index[name] = c.order.PushFront(&entry{name: name, payload: p})
	c.totalBytes += int64(len(p.Data))
}

// Contains reports whether the key is cached without touching recency.
func (c *Cache) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[name]
	return ok
}

// Len returns the number of cached icons.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.index, e.name)
	c.totalBytes -= int64(len(e.payload.Data))
}

// Stats returns cache usage statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.order.Len()
	if count == 0 {
		return Stats{}
	}

	sizes := make([]int64, 0, count)
	for el := c.order.Front(); el != nil; el = el.Next() {
		sizes = append(sizes, int64(len(el.Value.(*entry).payload.Data)))
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })

	var median int64
	if count%2 == 0 {
		median = (sizes[count/2-1] + sizes[count/2]) / 2
	} else {
		median = sizes[count/2]
	}

	return Stats{
		Count:       count,
		TotalBytes:  c.totalBytes,
		MinBytes:    sizes[0],
		MaxBytes:    sizes[count-1],
		MedianBytes: median,
		AvgBytes:    c.totalBytes / int64(count),
	}
}

// Resolve returns the icon as a data URI, fetching and caching on first
// sight. Empty URLs stay empty, pre-existing data URIs pass through, and a
// failed fetch falls back to the original URL without caching.
func (c *Cache) Resolve(ctx context.Context, name, iconURL string) string {
	if iconURL == "" {
		return ""
	}
	if strings.HasPrefix(iconURL, "data:") {
		return iconURL
	}

	if p, ok := c.Get(name); ok {
		return p.DataURL()
	}

	p, err := c.fetchOnce(ctx, name, iconURL)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("service", name).Msg("icon fetch failed, using source URL")
		return iconURL
	}
	return p.DataURL()
}

// EnsureCached fetches the icon into the cache if absent. It reports whether
// the icon is resident afterwards.
func (c *Cache) EnsureCached(ctx context.Context, name, iconURL string) bool {
	if iconURL == "" || strings.HasPrefix(iconURL, "data:") {
		return false
	}
	if c.Contains(name) {
		return true
	}
	if _, err := c.fetchOnce(ctx, name, iconURL); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("service", name).Msg("icon fetch failed")
		return false
	}
	return true
}

// fetchOnce de-duplicates concurrent first-fetches of the same service so
// byte accounting never double-counts an insert.
func (c *Cache) fetchOnce(ctx context.Context, name, iconURL string) (Payload, error) {
	v, err, _ := c.flight.Do(name, func() (any, error) {
		if p, ok := c.Get(name); ok {
			return p, nil
		}
		p, err := c.fetch(ctx, iconURL)
		if err != nil {
			return Payload{}, err
		}
		c.Put(name, p)
		return p, nil
	})
	if err != nil {
		return Payload{}, err
	}
	return v.(Payload), nil
}

func (c *Cache) fetch(ctx context.Context, iconURL string) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to build icon request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("icon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Payload{}, fmt.Errorf("icon request returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to read icon body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return Payload{ContentType: contentType, Data: data}, nil
}
