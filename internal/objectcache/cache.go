// Package objectcache keeps recently read objects in process memory.
//
// A cached entry is either the last known record of a key or an absence
// marker (a nil record), so repeated reads of missing keys stay off the store.
// Writers invalidate entries; the cache never loads anything by itself.
package objectcache

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eternalApril/objectdb/internal/document"
)

// DefaultSize is the number of keys kept when no size is configured
const DefaultSize = 40000

// LRU is a bounded, thread-safe object cache evicting the least recently used keys
type LRU struct {
	entries *lru.Cache[string, document.Document]
	metrics *cacheMetrics
}

type options struct {
	registerer prometheus.Registerer
	name       string
}

// Option configures an LRU
type Option func(*options)

// WithRegisterer exposes the cache metrics on the registerer
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithName labels the cache metrics, for processes running several caches
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// New creates an LRU holding up to size keys
func New(size int, opts ...Option) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}

	o := options{name: "objects"}
	for _, opt := range opts {
		opt(&o)
	}

	c := &LRU{}

	if o.registerer != nil {
		m, err := newCacheMetrics(o.registerer, o.name)
		if err != nil {
			return nil, fmt.Errorf("register cache metrics: %w", err)
		}
		c.metrics = m
	}

	entries, err := lru.NewWithEvict[string, document.Document](size, func(string, document.Document) {
		if c.metrics != nil {
			c.metrics.evictions.Inc()
		}
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries

	return c, nil
}

// Get returns the cached record of key. A hit with a nil record means the key
// is known to be absent.
func (c *LRU) Get(key string) (document.Document, bool) {
	doc, ok := c.entries.Get(key)
	if c.metrics != nil {
		if ok {
			c.metrics.hits.Inc()
		} else {
			c.metrics.misses.Inc()
		}
	}
	if !ok {
		return nil, false
	}
	return doc.Clone(), true
}

// Set caches the record of key; nil records an absence
func (c *LRU) Set(key string, doc document.Document) {
	c.entries.Add(key, doc.Clone())
	c.updateSize()
}

// Delete invalidates one key
func (c *LRU) Delete(key string) {
	c.entries.Remove(key)
	if c.metrics != nil {
		c.metrics.invalidations.Inc()
	}
	c.updateSize()
}

// DeleteMany invalidates every listed key in one call
func (c *LRU) DeleteMany(keys []string) {
	for _, key := range keys {
		c.entries.Remove(key)
	}
	if c.metrics != nil {
		c.metrics.invalidations.Add(float64(len(keys)))
	}
	c.updateSize()
}

// Reset drops every entry
func (c *LRU) Reset() {
	c.entries.Purge()
	if c.metrics != nil {
		c.metrics.resets.Inc()
	}
	c.updateSize()
}

// Len returns the number of cached keys
func (c *LRU) Len() int {
	return c.entries.Len()
}

func (c *LRU) updateSize() {
	if c.metrics != nil {
		c.metrics.size.Set(float64(c.entries.Len()))
	}
}

// Nop is a cache that never holds anything
type Nop struct{}

func (Nop) Get(string) (document.Document, bool) { return nil, false }
func (Nop) Set(string, document.Document)        {}
func (Nop) Delete(string)                        {}
func (Nop) DeleteMany([]string)                  {}
func (Nop) Reset()                               {}
