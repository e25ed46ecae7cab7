// Package cache provides an in-memory ports.Cache backed by an expirable
// LRU. Used for short-lived dashboard snapshots; nothing here survives a
// restart and nothing needs to.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultSize = 256

type LRUCache struct {
	entries *expirable.LRU[string, string]
}

func NewLRUCache(ttl time.Duration) *LRUCache {
	return &LRUCache{
		entries: expirable.NewLRU[string, string](defaultSize, nil, ttl),
	}
}

func (c *LRUCache) Get(ctx context.Context, key string) (string, bool, error) {
	if ctx == nil {
		return "", false, errors.New("context is required")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", false, errors.New("key is required")
	}

	value, ok := c.entries.Get(trimmedKey)
	return value, ok, nil
}

// Set stores the value; the TTL is fixed at construction time, the
// per-call ttl argument is accepted for interface compatibility.
func (c *LRUCache) Set(ctx context.Context, key string, value string, _ time.Duration) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return errors.New("key is required")
	}

	c.entries.Add(trimmedKey, value)
	return nil
}

func (c *LRUCache) Delete(ctx context.Context, key string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	c.entries.Remove(strings.TrimSpace(key))
	return nil
}
