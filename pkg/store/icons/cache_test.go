package icons

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadOf(data string) Payload {
	return Payload{ContentType: "image/png", Data: []byte(data)}
}

func TestPutAndGet(t *testing.T) {
	cache := NewCache(10)

	cache.Put("redis", payloadOf("icon-bytes"))

	got, ok := cache.Get("redis")
	require.True(t, ok)
	assert.Equal(t, []byte("icon-bytes"), got.Data)

	_, ok = cache.Get("postgres")
	assert.False(t, ok)
}

func TestEvictionFollowsRecency(t *testing.T) {
	cache := NewCache(2)

	cache.Put("a", payloadOf("aa"))
	cache.Put("b", payloadOf("bb"))

	// Touch a so b becomes the least recently used.
	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Put("c", payloadOf("cc"))

	assert.True(t, cache.Contains("a"))
	assert.False(t, cache.Contains("b"))
	assert.True(t, cache.Contains("c"))
	assert.Equal(t, 2, cache.Len())
}

func TestEvictionAtCapacityPlusOne(t *testing.T) {
	cache := NewCache(3)

	for _, name := range []string{"a", "b", "c", "d"} {
		cache.Put(name, payloadOf(name))
	}

	assert.Equal(t, 3, cache.Len())
	assert.False(t, cache.Contains("a"))
	for _, name := range []string{"b", "c", "d"} {
		assert.True(t, cache.Contains(name), name)
	}
}

func TestReplaceAdjustsByteAccounting(t *testing.T) {
	cache := NewCache(10)

	cache.Put("a", payloadOf("1234"))
	assert.Equal(t, int64(4), cache.Stats().TotalBytes)

	cache.Put("a", payloadOf("12345678"))
	stats := cache.Stats()
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, int64(8), stats.TotalBytes)
}

func TestEvictionReleasesBytes(t *testing.T) {
	cache := NewCache(2)

	cache.Put("a", payloadOf("aaaa"))
	cache.Put("b", payloadOf("bb"))
	cache.Put("c", payloadOf("c"))

	// a evicted: 2 + 1 bytes remain
	assert.Equal(t, int64(3), cache.Stats().TotalBytes)
}

func TestStats(t *testing.T) {
	cache := NewCache(10)

	assert.Equal(t, Stats{}, cache.Stats())

	cache.Put("a", payloadOf("12"))
	cache.Put("b", payloadOf("1234"))
	cache.Put("c", payloadOf("123456"))

	stats := cache.Stats()
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, int64(12), stats.TotalBytes)
	assert.Equal(t, int64(2), stats.MinBytes)
	assert.Equal(t, int64(6), stats.MaxBytes)
	assert.Equal(t, int64(4), stats.MedianBytes)
	assert.Equal(t, int64(4), stats.AvgBytes)
}

func TestDataURL(t *testing.T) {
	p := Payload{ContentType: "image/svg+xml", Data: []byte("<svg/>")}

	url := p.DataURL()

	assert.True(t, strings.HasPrefix(url, "data:image/svg+xml;base64,"))
	assert.Contains(t, url, "PHN2Zy8+")
}

func TestResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	cache := NewCache(10)
	ctx := context.Background()

	t.Run("empty url stays empty", func(t *testing.T) {
		assert.Empty(t, cache.Resolve(ctx, "svc", ""))
	})

	t.Run("data uri passes through", func(t *testing.T) {
		uri := "data:image/png;base64,AAAA"
		assert.Equal(t, uri, cache.Resolve(ctx, "svc", uri))
	})

	t.Run("fetches and caches on first sight", func(t *testing.T) {
		got := cache.Resolve(ctx, "redis", server.URL+"/redis.png")
		assert.True(t, strings.HasPrefix(got, "data:image/png;base64,"))
		assert.True(t, cache.Contains("redis"))
	})

	t.Run("second resolve hits the cache", func(t *testing.T) {
		first := cache.Resolve(ctx, "redis", server.URL+"/redis.png")
		second := cache.Resolve(ctx, "redis", server.URL+"/redis.png")
		assert.Equal(t, first, second)
	})
}

func TestResolveFetchFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := NewCache(10)
	iconURL := server.URL + "/broken.png"

	got := cache.Resolve(context.Background(), "broken", iconURL)

	assert.Equal(t, iconURL, got)
	assert.False(t, cache.Contains("broken"))
	assert.Equal(t, 0, cache.Len())
}

func TestEnsureCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("bytes"))
	}))
	defer server.Close()

	cache := NewCache(10)
	ctx := context.Background()

	assert.False(t, cache.EnsureCached(ctx, "svc", ""))
	assert.True(t, cache.EnsureCached(ctx, "svc", server.URL+"/icon.png"))
	assert.True(t, cache.Contains("svc"))
	assert.True(t, cache.EnsureCached(ctx, "svc", server.URL+"/icon.png"))
}

func TestFetchDefaultsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0x89, 0x50})
	}))
	defer server.Close()

	cache := NewCache(10)
	require.True(t, cache.EnsureCached(context.Background(), "svc", server.URL))

	p, ok := cache.Get("svc")
	require.True(t, ok)
	assert.Equal(t, "image/png", p.ContentType)
}
