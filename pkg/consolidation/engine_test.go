package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
)

const tenant = "tenant-1"

func TestAddService_DuplicateRejected(t *testing.T) {
	svc := service("s1", "ASIA EXPRESS", "cX", nil, destination("SHA", "Shanghai", models.RegionAsia, 0))
	engine := NewEngine(newFakeServiceStore(svc), newFakeConsortiumStore(), nil, testLogger())

	draft := &models.ConsortiumDraft{Name: "ASIA EXPRESS"}
	require.NoError(t, engine.AddService(context.Background(), tenant, draft, "s1"))

	err := engine.AddService(context.Background(), tenant, draft, "s1")
	require.Error(t, err)
	assert.True(t, kerrors.IsValidation(err))
	// The first add stands; the duplicate changed nothing.
	assert.Len(t, draft.Members, 1)
}

func TestAddService_DestinationsActiveByDefault(t *testing.T) {
	svc := service("s1", "ASIA EXPRESS", "cX", nil,
		destination("SHA", "Shanghai", models.RegionAsia, 0),
		destination("SIN", "Singapore", models.RegionAsia, 1),
	)
	engine := NewEngine(newFakeServiceStore(svc), newFakeConsortiumStore(), nil, testLogger())

	draft := &models.ConsortiumDraft{Name: "ASIA EXPRESS"}
	require.NoError(t, engine.AddService(context.Background(), tenant, draft, "s1"))

	require.Len(t, draft.Members, 1)
	require.Len(t, draft.Members[0].Destinations, 2)
	for _, d := range draft.Members[0].Destinations {
		assert.True(t, d.Active)
	}
}

func TestToggleDestination(t *testing.T) {
	sha := destination("SHA", "Shanghai", models.RegionAsia, 0)
	svc := service("s1", "ASIA EXPRESS", "cX", nil, sha)
	engine := NewEngine(newFakeServiceStore(svc), newFakeConsortiumStore(), nil, testLogger())

	draft := &models.ConsortiumDraft{Name: "ASIA EXPRESS"}
	require.NoError(t, engine.AddService(context.Background(), tenant, draft, "s1"))

	require.NoError(t, ToggleDestination(draft, "s1", sha.ID))
	assert.False(t, draft.Members[0].Destinations[0].Active)

	require.NoError(t, ToggleDestination(draft, "s1", sha.ID))
	assert.True(t, draft.Members[0].Destinations[0].Active)

	err := ToggleDestination(draft, "s1", "missing")
	assert.True(t, kerrors.IsValidation(err))

	err = ToggleDestination(draft, "missing", sha.ID)
	assert.True(t, kerrors.IsValidation(err))
}

func TestBuildFromGroups_NameHomogeneity(t *testing.T) {
	store := newFakeServiceStore(
		service("s1", "ASIA EXPRESS", "cX", nil, destination("SHA", "Shanghai", models.RegionAsia, 0)),
		service("s2", "asia express", "cY", nil, destination("SIN", "Singapore", models.RegionAsia, 0)),
		service("s3", "EURO LINE", "cZ", nil, destination("RTM", "Rotterdam", models.RegionEurope, 0)),
	)
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	t.Run("same normalized name across carriers succeeds", func(t *testing.T) {
		draft, err := engine.BuildFromGroups(context.Background(), tenant, models.GroupDiscoveryDraft{
			ServiceIDs: []string{"s1", "s2"},
		})
		require.NoError(t, err)
		assert.Len(t, draft.Members, 2)
		// The group's common name becomes the default consortium name.
		assert.Equal(t, "ASIA EXPRESS", draft.Name)
	})

	t.Run("mixing names across groups is rejected", func(t *testing.T) {
		_, err := engine.BuildFromGroups(context.Background(), tenant, models.GroupDiscoveryDraft{
			ServiceIDs: []string{"s1", "s2", "s3"},
		})
		require.Error(t, err)
		assert.True(t, kerrors.IsValidation(err))
		assert.Contains(t, err.Error(), "same name")
	})

	t.Run("caller-supplied name wins over the group name", func(t *testing.T) {
		draft, err := engine.BuildFromGroups(context.Background(), tenant, models.GroupDiscoveryDraft{
			Name:       "FAR EAST JOINT SERVICE",
			ServiceIDs: []string{"s1", "s2"},
		})
		require.NoError(t, err)
		assert.Equal(t, "FAR EAST JOINT SERVICE", draft.Name)
	})
}

func TestSave_Validation(t *testing.T) {
	engine := NewEngine(newFakeServiceStore(), newFakeConsortiumStore(), nil, testLogger())

	_, err := engine.Save(context.Background(), tenant, &models.ConsortiumDraft{Name: ""})
	assert.True(t, kerrors.IsValidation(err))

	_, err = engine.Save(context.Background(), tenant, &models.ConsortiumDraft{Name: "EMPTY"})
	assert.True(t, kerrors.IsValidation(err))
}

func TestSave_DeduplicatesByPortCodeAndFlagsRegionConflicts(t *testing.T) {
	store := newFakeServiceStore(
		service("s1", "ASIA EXPRESS", "cX", nil,
			destination("SHA", "Shanghai", models.RegionAsia, 0),
			destination("SIN", "Singapore", models.RegionAsia, 1),
		),
		service("s2", "ASIA EXPRESS", "cY", nil,
			// Same port, conflicting region: recorded, not resolved.
			destination("SHA", "Shanghai", models.RegionEurope, 0),
			destination("JEA", "Jebel Ali", models.RegionIndiaMiddleEast, 1),
		),
	)
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	draft, err := engine.BuildManualMix(context.Background(), tenant, models.ManualMixDraft{
		Name:       "ASIA EXPRESS",
		ServiceIDs: []string{"s1", "s2"},
	})
	require.NoError(t, err)

	saved, err := engine.Save(context.Background(), tenant, draft)
	require.NoError(t, err)

	require.Len(t, saved.Destinations, 3)
	assert.Equal(t, "SHA", saved.Destinations[0].PortCode)
	// First-seen region retained.
	assert.Equal(t, models.RegionAsia, saved.Destinations[0].Region)
	assert.Equal(t, "s1", saved.Destinations[0].SourceServiceID)
	assert.True(t, saved.RequiresReview)

	positions := []int{}
	for _, d := range saved.Destinations {
		positions = append(positions, d.Position)
	}
	assert.Equal(t, []int{0, 1, 2}, positions)
}

func TestSave_ToggledOffDestinationIsExcluded(t *testing.T) {
	sin := destination("SIN", "Singapore", models.RegionAsia, 1)
	store := newFakeServiceStore(
		service("s1", "ASIA EXPRESS", "cX", nil, destination("SHA", "Shanghai", models.RegionAsia, 0), sin),
	)
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	draft, err := engine.BuildManualMix(context.Background(), tenant, models.ManualMixDraft{
		Name:       "ASIA EXPRESS",
		ServiceIDs: []string{"s1"},
	})
	require.NoError(t, err)
	require.NoError(t, ToggleDestination(draft, "s1", draft.Members[0].Destinations[1].Destination.ID))

	saved, err := engine.Save(context.Background(), tenant, draft)
	require.NoError(t, err)
	require.Len(t, saved.Destinations, 1)
	assert.Equal(t, "SHA", saved.Destinations[0].PortCode)
}

func TestSave_ReviewFlagIsSticky(t *testing.T) {
	store := newFakeServiceStore(
		service("s1", "ASIA EXPRESS", "cX", nil, destination("SHA", "Shanghai", models.RegionAsia, 0)),
		service("s2", "ASIA EXPRESS", "cY", nil, destination("SHA", "Shanghai", models.RegionEurope, 0)),
	)
	consortiums := newFakeConsortiumStore()
	engine := NewEngine(store, consortiums, nil, testLogger())

	draft, err := engine.BuildManualMix(context.Background(), tenant, models.ManualMixDraft{
		Name:       "ASIA EXPRESS",
		ServiceIDs: []string{"s1", "s2"},
	})
	require.NoError(t, err)

	saved, err := engine.Save(context.Background(), tenant, draft)
	require.NoError(t, err)
	require.True(t, saved.RequiresReview)

	// Edit down to the single non-conflicting member: the flag survives until
	// a human clears it.
	edit, err := engine.DraftFor(context.Background(), tenant, saved)
	require.NoError(t, err)
	edit.Members = edit.Members[:1]

	resaved, err := engine.Save(context.Background(), tenant, edit)
	require.NoError(t, err)
	assert.True(t, resaved.RequiresReview)

	cleared, err := engine.ClearReview(context.Background(), tenant, resaved.ID)
	require.NoError(t, err)
	assert.False(t, cleared.RequiresReview)
}

func TestAggregates(t *testing.T) {
	store := newFakeServiceStore(
		service("s1", "ASIA EXPRESS", "cX", []string{"MV ALPHA [101W]", "MV BETA"},
			destination("SHA", "Shanghai", models.RegionAsia, 0)),
		service("s2", "ASIA EXPRESS", "cY", []string{"MV ALPHA [102E]"},
			destination("SHA", "Shanghai", models.RegionAsia, 0),
			destination("SIN", "Singapore", models.RegionAsia, 1)),
	)
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	draft, err := engine.BuildManualMix(context.Background(), tenant, models.ManualMixDraft{
		Name:       "ASIA EXPRESS",
		ServiceIDs: []string{"s1", "s2"},
	})
	require.NoError(t, err)

	agg := Aggregates(draft)
	// ALPHA deduplicated across voyage-code suffixes.
	assert.Equal(t, 2, agg.UniqueVessels)
	assert.Equal(t, 2, agg.UniqueDestinations)
}

func TestAvailableServices_Buckets(t *testing.T) {
	store := newFakeServiceStore(
		service("s1", "ASIA EXPRESS", "cX", nil, destination("SHA", "Shanghai", models.RegionAsia, 0)),
		service("s2", "ASIA EXPRESS", "cY", nil, destination("SHA", "Shanghai", models.RegionAsia, 0)),
		service("s3", "EURO LINE", "cZ", nil, destination("RTM", "Rotterdam", models.RegionEurope, 0)),
	)
	consortiums := newFakeConsortiumStore()
	engine := NewEngine(store, consortiums, nil, testLogger())

	draft, err := engine.BuildManualMix(context.Background(), tenant, models.ManualMixDraft{
		Name:       "ASIA EXPRESS",
		ServiceIDs: []string{"s1"},
	})
	require.NoError(t, err)
	saved, err := engine.Save(context.Background(), tenant, draft)
	require.NoError(t, err)

	available, err := engine.AvailableServices(context.Background(), tenant, saved)
	require.NoError(t, err)

	// s2 shares the member's name from a carrier not yet represented; it is
	// surfaced first. s3 lands in the catch-all bucket.
	require.Len(t, available.SameName, 1)
	assert.Equal(t, "s2", available.SameName[0].ID)
	require.Len(t, available.Other, 1)
	assert.Equal(t, "s3", available.Other[0].ID)
}

func TestBuildManualMix_RejectsInactiveService(t *testing.T) {
	dormant := service("s2", "EURO LINE", "cY", nil, destination("RTM", "Rotterdam", models.RegionEurope, 0))
	dormant.Active = false
	store := newFakeServiceStore(
		service("s1", "ASIA EXPRESS", "cX", nil, destination("SHA", "Shanghai", models.RegionAsia, 0)),
		dormant,
	)
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	_, err := engine.BuildManualMix(context.Background(), tenant, models.ManualMixDraft{
		Name:       "MIXED SERVICE",
		ServiceIDs: []string{"s1", "s2"},
	})
	require.Error(t, err)
	assert.True(t, kerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "inactive")
}

func TestAddService_RejectsInactiveService(t *testing.T) {
	dormant := service("s9", "GHOST ROUTE", "cZ", nil, destination("SHA", "Shanghai", models.RegionAsia, 0))
	dormant.Active = false
	engine := NewEngine(newFakeServiceStore(dormant), newFakeConsortiumStore(), nil, testLogger())

	draft := &models.ConsortiumDraft{Name: "MIXED SERVICE"}
	err := engine.AddService(context.Background(), tenant, draft, "s9")
	require.Error(t, err)
	assert.True(t, kerrors.IsValidation(err))
	assert.Empty(t, draft.Members)
}

func TestSave_UncodedPortCallsStayDistinct(t *testing.T) {
	// Destinations without a port code fall back to their record id as the
	// dedup key, so two of them on the same service never collapse.
	store := newFakeServiceStore(
		service("s1", "FEEDER LOOP", "cX", nil,
			destination("SHA", "Shanghai", models.RegionAsia, 0),
			destination("", "Anchorage East", models.RegionAsia, 1),
			destination("", "Anchorage West", models.RegionAsia, 2),
		),
	)
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	draft, err := engine.BuildManualMix(context.Background(), tenant, models.ManualMixDraft{
		Name:       "FEEDER LOOP",
		ServiceIDs: []string{"s1"},
	})
	require.NoError(t, err)

	saved, err := engine.Save(context.Background(), tenant, draft)
	require.NoError(t, err)
	require.Len(t, saved.Destinations, 3)
	assert.Equal(t, "Anchorage East", saved.Destinations[1].PortName)
	assert.Equal(t, "Anchorage West", saved.Destinations[2].PortName)
}
