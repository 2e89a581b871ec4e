// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package cache implements the Firmware Cache: a bounded, per-device LRU
// of resolved firmware Entry values with single-flight load coalescing.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/otaflux/otaflux/internal/firmware"
	"github.com/otaflux/otaflux/internal/metrics"
)

// LoadFunc resolves a fresh Entry for device on a cache miss.
type LoadFunc func(device firmware.DeviceId) (*firmware.Entry, error)

// Cache composes a bounded LRU index with a singleflight group, per
// SPEC_FULL.md §4.4: at most one inflight load per device, and a `put`
// that never evicts the same device's existing entry — eviction only
// fires when the number of distinct cached devices grows past capacity.
type Cache struct {
	index   *lru.Cache[firmware.DeviceId, *firmware.Entry]
	loading singleflight.Group
}

// New constructs a Cache bounded to capacity distinct devices.
func New(capacity int) (*Cache, error) {
	index, err := lru.New[firmware.DeviceId, *firmware.Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{index: index}, nil
}

// GetOrLoad returns the cached Entry for device if present, recording a
// cache_hit. On a miss it records cache_miss and runs load, coalescing
// concurrent misses for the same device behind a single call to load.
// The leader's result is inserted into the cache before being returned
// to every waiter.
func (c *Cache) GetOrLoad(device firmware.DeviceId, load LoadFunc) (*firmware.Entry, error) {
	if entry, ok := c.index.Get(device); ok {
		metrics.CacheHits.WithLabelValues(string(device)).Inc()
		return entry, nil
	}

	metrics.CacheMisses.WithLabelValues(string(device)).Inc()

	v, err, _ := c.loading.Do(string(device), func() (interface{}, error) {
		entry, err := load(device)
		if err != nil {
			return nil, err
		}
		c.Put(device, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*firmware.Entry), nil
}

// Put inserts or replaces the entry for device. If device is already
// cached, the value is replaced in place and no eviction occurs; only
// inserting a previously-absent device can evict another device's entry
// once the cache is at capacity.
func (c *Cache) Put(device firmware.DeviceId, entry *firmware.Entry) {
	c.index.Add(device, entry)
}

// Invalidate removes device's cached entry, if any.
func (c *Cache) Invalidate(device firmware.DeviceId) {
	c.index.Remove(device)
}

// Len returns the number of distinct devices currently cached.
func (c *Cache) Len() int {
	return c.index.Len()
}
