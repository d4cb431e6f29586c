package schema

import (
	"time"

	"flowform/internal/form"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache keeps recently used forms in memory: a form's field definitions
// are read-only for the lifetime of a conversation, so re-fetching on
// every collect call is wasted work. Entries expire so deactivations
// propagate without explicit invalidation on every node.
type Cache struct {
	lru *expirable.LRU[string, *form.Form]
}

func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, *form.Form](maxSize, nil, ttl)}
}

func (c *Cache) Get(formID string) (*form.Form, bool) {
	return c.lru.Get(formID)
}

func (c *Cache) Add(f *form.Form) {
	c.lru.Add(f.ID, f)
}

// Remove drops a form after a definition or status change.
func (c *Cache) Remove(formID string) {
	c.lru.Remove(formID)
}
