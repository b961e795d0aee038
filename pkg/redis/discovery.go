package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/harborline/keel/pkg/models"
)

const discoveryKeyPrefix = "keel:discovery:groups:"

// DiscoveryCache caches group-by-name discovery results per tenant. Group
// discovery rescans every active service on each call; the cache absorbs
// repeated reads between catalog changes.
type DiscoveryCache struct {
	client *Client
	ttl    time.Duration
	logger ectologger.Logger
}

// NewDiscoveryCache creates a discovery cache with the given entry lifetime.
func NewDiscoveryCache(client *Client, ttl time.Duration, logger ectologger.Logger) *DiscoveryCache {
	return &DiscoveryCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GroupsFor returns the cached discovery groups for a tenant, or false on a
// miss. Cache failures count as misses; discovery always has the database to
// fall back on.
func (c *DiscoveryCache) GroupsFor(ctx context.Context, tenantID string) ([]models.ServiceGroup, bool) {
	raw, err := c.client.Get(ctx, discoveryKeyPrefix+tenantID)
	if err != nil {
		if !IsMiss(err) {
			c.logger.WithContext(ctx).WithError(err).Warn("discovery cache read failed")
		}
		return nil, false
	}

	var groups []models.ServiceGroup
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("discovery cache entry corrupt")
		return nil, false
	}
	return groups, true
}

// StoreGroups caches the discovery groups for a tenant.
func (c *DiscoveryCache) StoreGroups(ctx context.Context, tenantID string, groups []models.ServiceGroup) {
	encoded, err := json.Marshal(groups)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, discoveryKeyPrefix+tenantID, encoded, c.ttl); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("discovery cache write failed")
	}
}

// Invalidate drops the cached groups for a tenant. Called after any service
// mutation that can change group membership.
func (c *DiscoveryCache) Invalidate(ctx context.Context, tenantID string) {
	if err := c.client.Del(ctx, discoveryKeyPrefix+tenantID); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("discovery cache invalidation failed")
	}
}
