// Package catalog reads and normalizes the carrier service catalog and
// discovers same-named services across carriers.
package catalog

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

// vesselSuffix matches a trailing bracketed voyage code on a vessel display
// string, e.g. "EVER GIVEN [123W]".
var vesselSuffix = regexp.MustCompile(`^(.+?)\s*\[.+\]$`)

// NormalizeVesselName strips a trailing bracketed voyage-code suffix so the
// same vessel sailing under different voyage codes collapses to one name.
// Strings without a suffix are returned trimmed and otherwise unchanged.
func NormalizeVesselName(display string) string {
	display = strings.TrimSpace(display)
	if m := vesselSuffix.FindStringSubmatch(display); m != nil {
		return strings.TrimSpace(m[1])
	}
	return display
}

// NormalizeVessels normalizes a vessel pool, deduplicating by normalized
// name while preserving first-seen order.
func NormalizeVessels(displays []string) []string {
	seen := make(map[string]bool, len(displays))
	out := make([]string, 0, len(displays))
	for _, d := range displays {
		name := NormalizeVesselName(d)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// NormalizeName canonicalizes a service name for cross-carrier comparison.
// Two services are "the same named service" iff their normalized names are
// equal, regardless of description, vessel pool, or destinations.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// ServiceStore is the slice of the persistence collaborator the catalog
// needs.
type ServiceStore interface {
	List(ctx context.Context, tenantID string, filter models.ServiceFilter) ([]models.Service, error)
}

// GroupCache caches discovery results between catalog changes.
type GroupCache interface {
	GroupsFor(ctx context.Context, tenantID string) ([]models.ServiceGroup, bool)
	StoreGroups(ctx context.Context, tenantID string, groups []models.ServiceGroup)
	Invalidate(ctx context.Context, tenantID string)
}

// Catalog loads and normalizes carrier-specific service records.
type Catalog struct {
	services ServiceStore
	groups   GroupCache
	logger   ectologger.Logger
}

// New creates a service catalog over the given store.
func New(services ServiceStore, logger ectologger.Logger) *Catalog {
	return &Catalog{
		services: services,
		logger:   logger,
	}
}

// UseGroupCache attaches a discovery cache. Without one every discovery call
// rescans the active services.
func (c *Catalog) UseGroupCache(cache GroupCache) {
	c.groups = cache
}

// InvalidateGroups drops any cached discovery result for the tenant. No-op
// when no cache is attached.
func (c *Catalog) InvalidateGroups(ctx context.Context, tenantID string) {
	if c.groups != nil {
		c.groups.Invalidate(ctx, tenantID)
	}
}

// LoadActiveServices returns only active services, with every vessel pool
// normalized. Inactive services are excluded from all discovery and merge
// operations.
func (c *Catalog) LoadActiveServices(ctx context.Context, tenantID string) ([]models.Service, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Catalog.LoadActiveServices")
	defer span.End()

	active := true
	services, err := c.services.List(ctx, tenantID, models.ServiceFilter{Active: &active})
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("failed to load active services")
		return nil, err
	}

	for i := range services {
		services[i].Vessels = NormalizeVessels(services[i].Vessels)
	}

	return services, nil
}

// DiscoverGroups groups all active services by normalized name and keeps
// only groups where at least two carriers share the name. Each group is one
// selectable unit for the group-by-name consolidation flow.
func (c *Catalog) DiscoverGroups(ctx context.Context, tenantID string) ([]models.ServiceGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Catalog.DiscoverGroups")
	defer span.End()

	if c.groups != nil {
		if cached, ok := c.groups.GroupsFor(ctx, tenantID); ok {
			return cached, nil
		}
	}

	services, err := c.LoadActiveServices(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	discovered := GroupByName(services)
	if c.groups != nil {
		c.groups.StoreGroups(ctx, tenantID, discovered)
	}
	return discovered, nil
}

// Vessels returns every distinct vessel name across the tenant's active
// fleet pools, normalized and sorted.
func (c *Catalog) Vessels(ctx context.Context, tenantID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Catalog.Vessels")
	defer span.End()

	services, err := c.LoadActiveServices(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	vessels := []string{}
	for _, svc := range services {
		for _, v := range svc.Vessels {
			if seen[v] {
				continue
			}
			seen[v] = true
			vessels = append(vessels, v)
		}
	}

	sort.Strings(vessels)
	return vessels, nil
}

// GroupByName buckets services by normalized name and retains groups with
// members from at least two distinct carriers. Groups are sorted by name,
// members keep catalog order.
func GroupByName(services []models.Service) []models.ServiceGroup {
	byName := make(map[string][]models.Service)
	for _, svc := range services {
		key := NormalizeName(svc.Name)
		if key == "" {
			continue
		}
		byName[key] = append(byName[key], svc)
	}

	groups := make([]models.ServiceGroup, 0, len(byName))
	for name, members := range byName {
		carriers := make(map[string]bool, len(members))
		for _, m := range members {
			carriers[m.CarrierID] = true
		}
		if len(carriers) < 2 {
			continue
		}
		groups = append(groups, models.ServiceGroup{Name: name, Services: members})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}
