// Package cache holds in-process caches placed in front of the database.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/gosuda/boardsync/internal/domain"
)

// PermissionChecker is the lookup being cached. *postgres.Store satisfies it.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, scopeID string, perm domain.Permission) bool
}

// Permissions memoizes permission decisions for a short TTL. A broadcast to a
// busy team asks the same question once per recipient per event, so even a
// few seconds absorb most of the load. Denials are cached too.
type Permissions struct {
	next PermissionChecker
	c    *ristretto.Cache[string, bool]
	ttl  time.Duration
}

// NewPermissions wraps next with a cache of at most maxItems decisions.
func NewPermissions(next PermissionChecker, maxItems int64, ttl time.Duration) (*Permissions, error) {
	if maxItems <= 0 {
		maxItems = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, bool]{
		NumCounters:        maxItems * 10, // ~10x expected items
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache.NewPermissions: %w", err)
	}
	return &Permissions{next: next, c: c, ttl: ttl}, nil
}

func permissionKey(userID, scopeID string, perm domain.Permission) string {
	return strings.Join([]string{userID, scopeID, string(perm)}, "\x00")
}

func (p *Permissions) HasPermission(ctx context.Context, userID, scopeID string, perm domain.Permission) bool {
	key := permissionKey(userID, scopeID, perm)
	if allowed, ok := p.c.Get(key); ok {
		return allowed
	}

	allowed := p.next.HasPermission(ctx, userID, scopeID, perm)
	p.c.SetWithTTL(key, allowed, 1, p.ttl)
	return allowed
}

// Wait blocks until pending writes are visible to Get.
func (p *Permissions) Wait() {
	p.c.Wait()
}

// Close shuts down the cache and releases resources.
func (p *Permissions) Close() {
	p.c.Close()
}
