// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package authorization

import (
	"context"
	"sync"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// PathResolverFunc adapts a function to the PathResolver interface.
type PathResolverFunc func(ctx context.Context, driveID, itemID string) (string, error)

func (f PathResolverFunc) ResolvePath(ctx context.Context, driveID, itemID string) (string, error) {
	return f(ctx, driveID, itemID)
}

// CachedResolver remembers resolved item paths. Entries are dropped by Forget
// when a tool moves, renames or deletes the item.
type CachedResolver struct {
	resolver PathResolver

	mu    sync.RWMutex
	paths map[string]string
}

// NewCachedResolver wraps resolver with an in-memory cache.
func NewCachedResolver(resolver PathResolver) *CachedResolver {
	return &CachedResolver{resolver: resolver, paths: make(map[string]string)}
}

func cacheKey(driveID, itemID string) string {
	return driveID + "|" + itemID
}

func (c *CachedResolver) ResolvePath(ctx context.Context, driveID, itemID string) (string, error) {
	key := cacheKey(driveID, itemID)

	c.mu.RLock()
	path, ok := c.paths[key]
	c.mu.RUnlock()
	if ok {
		logging.AuthorizationLogger.Debug("Path cache hit", "item_id", itemID, "path", path)
		return path, nil
	}

	path, err := c.resolver.ResolvePath(ctx, driveID, itemID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.paths[key] = path
	c.mu.Unlock()
	return path, nil
}

// Forget drops a cached path.
func (c *CachedResolver) Forget(driveID, itemID string) {
	c.mu.Lock()
	delete(c.paths, cacheKey(driveID, itemID))
	c.mu.Unlock()
}

// Clear drops every cached path.
func (c *CachedResolver) Clear() {
	c.mu.Lock()
	c.paths = make(map[string]string)
	c.mu.Unlock()
}

// Len returns the number of cached paths.
func (c *CachedResolver) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.paths)
}
