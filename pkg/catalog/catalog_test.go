package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/keel/pkg/models"
)

func TestNormalizeVesselName(t *testing.T) {
	tests := []struct {
		name    string
		display string
		want    string
	}{
		{name: "voyage suffix stripped", display: "EVER GIVEN [123W]", want: "EVER GIVEN"},
		{name: "suffix without space", display: "MSC OSCAR[004E]", want: "MSC OSCAR"},
		{name: "no suffix", display: "MAERSK ESSEX", want: "MAERSK ESSEX"},
		{name: "surrounding whitespace", display: "  CMA CGM JACQUES SAADE  ", want: "CMA CGM JACQUES SAADE"},
		{name: "brackets mid-name are kept", display: "ONE [BLUE] JAY", want: "ONE [BLUE] JAY"},
		{name: "empty", display: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeVesselName(tt.display))
		})
	}
}

func TestNormalizeVessels(t *testing.T) {
	got := NormalizeVessels([]string{"MV ALPHA [101W]", "MV BETA", "MV ALPHA [102E]", ""})
	assert.Equal(t, []string{"MV ALPHA", "MV BETA"}, got)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "ASIA EXPRESS", NormalizeName("  asia express "))
	assert.Equal(t, "ASIA EXPRESS", NormalizeName("Asia Express"))
}

func svc(id, name, carrierID string, active bool) models.Service {
	return models.Service{ID: id, Name: name, CarrierID: carrierID, CarrierName: "Carrier " + carrierID, Active: active}
}

func TestGroupByName(t *testing.T) {
	services := []models.Service{
		svc("s1", "ASIA EXPRESS", "cX", true),
		svc("s2", "asia express", "cY", true),
		svc("s3", "EURO LINE", "cX", true),
		svc("s4", "MED LOOP", "cX", true),
		svc("s5", "MED LOOP", "cX", true), // same carrier twice: not a group
	}

	groups := GroupByName(services)
	require.Len(t, groups, 1)
	assert.Equal(t, "ASIA EXPRESS", groups[0].Name)
	assert.Len(t, groups[0].Services, 2)
}

type stubServiceStore struct {
	services  []models.Service
	gotFilter models.ServiceFilter
}

func (s *stubServiceStore) List(_ context.Context, _ string, filter models.ServiceFilter) ([]models.Service, error) {
	s.gotFilter = filter
	var out []models.Service
	for _, svc := range s.services {
		if filter.Active != nil && svc.Active != *filter.Active {
			continue
		}
		out = append(out, svc)
	}
	return out, nil
}

func TestLoadActiveServices(t *testing.T) {
	inactive := svc("s9", "GHOST ROUTE", "cZ", false)
	active := svc("s1", "ASIA EXPRESS", "cX", true)
	active.Vessels = []string{"MV ALPHA [101W]", "MV ALPHA [102E]", "MV BETA"}

	store := &stubServiceStore{services: []models.Service{active, inactive}}
	c := New(store, testLogger())

	got, err := c.LoadActiveServices(context.Background(), "tenant-1")
	require.NoError(t, err)

	require.NotNil(t, store.gotFilter.Active)
	assert.True(t, *store.gotFilter.Active)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"MV ALPHA", "MV BETA"}, got[0].Vessels)
}

func TestDiscoverGroups(t *testing.T) {
	store := &stubServiceStore{services: []models.Service{
		svc("s1", "ASIA EXPRESS", "cX", true),
		svc("s2", "Asia Express", "cY", true),
		svc("s3", "ASIA EXPRESS", "cZ", false), // inactive never joins a group
	}}
	c := New(store, testLogger())

	groups, err := c.DiscoverGroups(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Services, 2)
}

type stubGroupCache struct {
	entries     map[string][]models.ServiceGroup
	stores      int
	invalidates int
}

func (s *stubGroupCache) GroupsFor(_ context.Context, tenantID string) ([]models.ServiceGroup, bool) {
	groups, ok := s.entries[tenantID]
	return groups, ok
}

func (s *stubGroupCache) StoreGroups(_ context.Context, tenantID string, groups []models.ServiceGroup) {
	s.stores++
	s.entries[tenantID] = groups
}

func (s *stubGroupCache) Invalidate(_ context.Context, tenantID string) {
	s.invalidates++
	delete(s.entries, tenantID)
}

func TestDiscoverGroups_CacheRoundTrip(t *testing.T) {
	store := &stubServiceStore{services: []models.Service{
		svc("s1", "ASIA EXPRESS", "cX", true),
		svc("s2", "ASIA EXPRESS", "cY", true),
	}}
	cache := &stubGroupCache{entries: map[string][]models.ServiceGroup{}}
	c := New(store, testLogger())
	c.UseGroupCache(cache)

	first, err := c.DiscoverGroups(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, cache.stores)

	// Second call is served from the cache; the store must not be rescanned.
	store.services = nil
	second, err := c.DiscoverGroups(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.stores)

	c.InvalidateGroups(context.Background(), "tenant-1")
	assert.Equal(t, 1, cache.invalidates)

	third, err := c.DiscoverGroups(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, third)
	assert.Equal(t, 2, cache.stores)
}

func TestVessels(t *testing.T) {
	a := svc("s1", "ASIA EXPRESS", "cX", true)
	a.Vessels = []string{"MV BETA", "MV ALPHA [101W]"}
	b := svc("s2", "EURO LINE", "cY", true)
	b.Vessels = []string{"MV ALPHA", "MV GAMMA"}
	ghost := svc("s3", "GHOST ROUTE", "cZ", false)
	ghost.Vessels = []string{"MV OMEGA"}

	store := &stubServiceStore{services: []models.Service{a, b, ghost}}
	c := New(store, testLogger())

	vessels, err := c.Vessels(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"MV ALPHA", "MV BETA", "MV GAMMA"}, vessels)
}
