package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
)

func baseService() models.Service {
	return service("base", "ASIA EXPRESS", "cX",
		[]string{"MV ALPHA [101W]", "MV BETA"},
		destination("SHA", "Shanghai", models.RegionAsia, 0),
		destination("SIN", "Singapore", models.RegionAsia, 1),
	)
}

func TestConvert_RequiresExplicitName(t *testing.T) {
	engine := NewEngine(newFakeServiceStore(baseService()), newFakeConsortiumStore(), nil, testLogger())

	_, err := engine.Convert(context.Background(), tenant, models.ConversionDraft{
		BaseServiceID: "base",
		Carriers:      []models.CarrierSelector{{CarrierID: "cY", CarrierName: "Carrier cY"}},
	})
	require.Error(t, err)
	assert.True(t, kerrors.IsValidation(err))
}

func TestConvert_RejectsCarrierAlreadyServingName(t *testing.T) {
	store := newFakeServiceStore(
		baseService(),
		service("other", "asia express", "cY", nil, destination("SHA", "Shanghai", models.RegionAsia, 0)),
	)
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	_, err := engine.Convert(context.Background(), tenant, models.ConversionDraft{
		Name:          "ASIA EXPRESS JOINT",
		BaseServiceID: "base",
		Carriers:      []models.CarrierSelector{{CarrierID: "cY", CarrierName: "Carrier cY"}},
	})
	require.Error(t, err)
	assert.True(t, kerrors.IsValidation(err))
	// Validation happens before any persistence call.
	assert.Equal(t, 0, store.createCalls)
}

func TestConvert_ClonesPerCarrier(t *testing.T) {
	store := newFakeServiceStore(baseService())
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	result, err := engine.Convert(context.Background(), tenant, models.ConversionDraft{
		Name:          "ASIA EXPRESS JOINT",
		BaseServiceID: "base",
		Carriers: []models.CarrierSelector{
			{CarrierID: "cY", CarrierName: "Carrier cY"},
			{CarrierID: "cZ", CarrierName: "Carrier cZ"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Draft)

	assert.Len(t, result.Succeeded(), 2)
	assert.Empty(t, result.Failed())

	// Base plus one clone per carrier.
	require.Len(t, result.Draft.Members, 3)
	assert.Equal(t, "ASIA EXPRESS JOINT", result.Draft.Name)

	for _, outcome := range result.Outcomes {
		clone, getErr := store.GetByID(context.Background(), tenant, outcome.ServiceID)
		require.NoError(t, getErr)
		require.NotNil(t, clone)
		assert.Equal(t, "ASIA EXPRESS", clone.Name)
		assert.Equal(t, []string{"MV ALPHA", "MV BETA"}, clone.Vessels)
		require.Len(t, clone.Destinations, 2)
		assert.Equal(t, "SHA", clone.Destinations[0].PortCode)
	}
}

func TestConvert_PartialFailureLeavesSucceededClones(t *testing.T) {
	store := newFakeServiceStore(baseService())
	store.failCarriers["c2"] = true
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	result, err := engine.Convert(context.Background(), tenant, models.ConversionDraft{
		Name:          "ASIA EXPRESS JOINT",
		BaseServiceID: "base",
		Carriers: []models.CarrierSelector{
			{CarrierID: "c1", CarrierName: "Carrier c1"},
			{CarrierID: "c2", CarrierName: "Carrier c2"},
			{CarrierID: "c3", CarrierName: "Carrier c3"},
		},
	})
	require.Error(t, err)
	require.True(t, kerrors.IsPartialFailure(err))
	require.NotNil(t, result)
	assert.Nil(t, result.Draft)

	require.Len(t, result.Outcomes, 3)
	assert.True(t, result.Outcomes[0].Succeeded)
	assert.False(t, result.Outcomes[1].Succeeded)
	assert.NotEmpty(t, result.Outcomes[1].Error)
	assert.True(t, result.Outcomes[2].Succeeded)

	// All three creates were attempted, in order; the failure did not stop
	// the remaining carriers and nothing was rolled back.
	assert.Equal(t, 3, store.createCalls)
	for _, outcome := range result.Succeeded() {
		clone, getErr := store.GetByID(context.Background(), tenant, outcome.ServiceID)
		require.NoError(t, getErr)
		require.NotNil(t, clone)
	}
}

func TestConvert_RetryWithReducedSetDoesNotReClone(t *testing.T) {
	store := newFakeServiceStore(baseService())
	store.failCarriers["c2"] = true
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	result, err := engine.Convert(context.Background(), tenant, models.ConversionDraft{
		Name:          "ASIA EXPRESS JOINT",
		BaseServiceID: "base",
		Carriers: []models.CarrierSelector{
			{CarrierID: "c1", CarrierName: "Carrier c1"},
			{CarrierID: "c2", CarrierName: "Carrier c2"},
			{CarrierID: "c3", CarrierName: "Carrier c3"},
		},
	})
	require.True(t, kerrors.IsPartialFailure(err))

	callsAfterConvert := store.createCalls

	// Retry the consortium save over the base plus the clones that made it.
	ids := []string{"base"}
	for _, outcome := range result.Succeeded() {
		ids = append(ids, outcome.ServiceID)
	}
	draft, err := engine.BuildManualMix(context.Background(), tenant, models.ManualMixDraft{
		Name:       "ASIA EXPRESS JOINT",
		ServiceIDs: ids,
	})
	require.NoError(t, err)

	saved, err := engine.Save(context.Background(), tenant, draft)
	require.NoError(t, err)
	assert.Len(t, saved.Members, 3)

	// The retry is a plain save; no clone create calls were re-issued.
	assert.Equal(t, callsAfterConvert, store.createCalls)
}

func TestConvert_NotifierReceivesClones(t *testing.T) {
	store := newFakeServiceStore(baseService())
	recorder := &recordingNotifier{}
	engine := NewEngine(store, newFakeConsortiumStore(), recorder, testLogger())

	_, err := engine.Convert(context.Background(), tenant, models.ConversionDraft{
		Name:          "ASIA EXPRESS JOINT",
		BaseServiceID: "base",
		Carriers:      []models.CarrierSelector{{CarrierID: "cY", CarrierName: "Carrier cY"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, recorder.cloned)
}

type recordingNotifier struct {
	saved   int
	deleted int
	cloned  int
}

func (r *recordingNotifier) ConsortiumSaved(context.Context, *models.Consortium, bool) { r.saved++ }
func (r *recordingNotifier) ConsortiumDeleted(context.Context, string, string)        { r.deleted++ }
func (r *recordingNotifier) ServiceCloned(context.Context, *models.Service, string)   { r.cloned++ }

func TestConvert_RejectsInactiveBase(t *testing.T) {
	base := baseService()
	base.Active = false
	store := newFakeServiceStore(base)
	engine := NewEngine(store, newFakeConsortiumStore(), nil, testLogger())

	_, err := engine.Convert(context.Background(), tenant, models.ConversionDraft{
		Name:          "ASIA EXPRESS JOINT",
		BaseServiceID: "base",
		Carriers:      []models.CarrierSelector{{CarrierID: "cY", CarrierName: "Carrier cY"}},
	})
	require.Error(t, err)
	assert.True(t, kerrors.IsValidation(err))
	// Rejected before any clone is attempted.
	assert.Equal(t, 0, store.createCalls)
}
