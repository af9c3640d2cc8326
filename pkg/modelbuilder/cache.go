package modelbuilder

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ritzau/pomreactor/pkg/model"
)

// Cache holds parsed raw models keyed by source location and contents
type Cache interface {
	Get(key string) (*model.Model, bool)
	Put(key string, m *model.Model)
}

// LRUCache is a size-bounded Cache shared between builds
type LRUCache struct {
	cache *lru.Cache[string, *model.Model]
}

// NewLRUCache creates a cache holding up to size models
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, *model.Model](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: c}, nil
}

// Get returns a copy of the cached model
func (c *LRUCache) Get(key string) (*model.Model, bool) {
	m, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Put stores a copy of the model
func (c *LRUCache) Put(key string, m *model.Model) {
	c.cache.Add(key, m.Clone())
}

// Len returns the number of cached models
func (c *LRUCache) Len() int {
	return c.cache.Len()
}
