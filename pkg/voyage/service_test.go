package voyage

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/keel/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeItineraryStore struct {
	itineraries map[string]models.Itinerary
	updates     int
}

func newFakeItineraryStore() *fakeItineraryStore {
	return &fakeItineraryStore{itineraries: make(map[string]models.Itinerary)}
}

func (s *fakeItineraryStore) GetByID(_ context.Context, _ string, id string) (*models.Itinerary, error) {
	it, ok := s.itineraries[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (s *fakeItineraryStore) List(_ context.Context, _ string) ([]models.Itinerary, error) {
	var out []models.Itinerary
	for _, it := range s.itineraries {
		out = append(out, it)
	}
	return out, nil
}

func (s *fakeItineraryStore) Create(_ context.Context, tenantID string, it *models.Itinerary) (*models.Itinerary, error) {
	saved := *it
	saved.TenantID = tenantID
	s.itineraries[saved.ID] = saved
	return &saved, nil
}

func (s *fakeItineraryStore) Update(_ context.Context, tenantID string, id string, it *models.Itinerary) (*models.Itinerary, error) {
	s.updates++
	saved := *it
	saved.ID = id
	saved.TenantID = tenantID
	s.itineraries[id] = saved
	return &saved, nil
}

func (s *fakeItineraryStore) Delete(_ context.Context, _ string, id string) error {
	delete(s.itineraries, id)
	return nil
}

type recordingNotifier struct {
	saved   int
	deleted int
}

func (r *recordingNotifier) ItinerarySaved(context.Context, *models.Itinerary, bool) { r.saved++ }
func (r *recordingNotifier) ItineraryDeleted(context.Context, string, string)       { r.deleted++ }

func sampleConsortium() *models.Consortium {
	return &models.Consortium{
		ID:   "cons-1",
		Name: "ASIA EXPRESS",
		Destinations: []models.ConsolidatedDestination{
			{PortCode: "SHA", PortName: "Shanghai", Region: models.RegionAsia, Position: 0},
			{PortCode: "SIN", PortName: "Singapore", Region: models.RegionAsia, Position: 1},
			{PortCode: "JEA", PortName: "Jebel Ali", Region: models.RegionIndiaMiddleEast, Position: 2},
		},
	}
}

func TestScheduleForConsortium_SeedsEscalas(t *testing.T) {
	store := newFakeItineraryStore()
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier, testLogger())

	it, err := svc.ScheduleForConsortium(context.Background(), "tenant-1", sampleConsortium(), models.CreateItineraryRequest{
		Vessel:     "MV ALPHA",
		VoyageCode: "101W",
		POL:        "VLC",
		ETD:        "2024-01-10",
	})
	require.NoError(t, err)

	// A pure consortium sailing has no single-carrier attribution.
	assert.Nil(t, it.CarrierName)
	require.NotNil(t, it.ConsortiumID)
	assert.Equal(t, "ASIA EXPRESS", it.ServiceName)

	require.NotNil(t, it.ETD)
	require.NotNil(t, it.Week)
	assert.Equal(t, 2, *it.Week)

	require.Len(t, it.Escalas, 3)
	for i, escala := range it.Escalas {
		assert.Equal(t, i+1, escala.Position)
		assert.Nil(t, escala.ETA)
		assert.Nil(t, escala.TransitDays)
	}
	assert.Equal(t, "SHA", it.Escalas[0].PortCode)
	assert.Equal(t, "JEA", it.Escalas[2].PortCode)

	assert.Equal(t, 1, notifier.saved)
}

func TestScheduleForService_CarriesCarrierAttribution(t *testing.T) {
	store := newFakeItineraryStore()
	svc := NewService(store, nil, testLogger())

	base := &models.Service{
		ID:          "s1",
		Name:        "ASIA EXPRESS",
		CarrierName: "Carrier cX",
		Destinations: []models.Destination{
			{PortCode: "SHA", PortName: "Shanghai", Region: models.RegionAsia, Position: 0},
		},
	}

	it, err := svc.ScheduleForService(context.Background(), "tenant-1", base, models.CreateItineraryRequest{
		Vessel: "MV ALPHA",
		POL:    "VLC",
	})
	require.NoError(t, err)

	require.NotNil(t, it.CarrierName)
	assert.Equal(t, "Carrier cX", *it.CarrierName)
	require.NotNil(t, it.ServiceID)
	assert.Nil(t, it.ConsortiumID)
	require.Len(t, it.Escalas, 1)
}

func TestSchedule_MalformedETDLeavesDerivedNull(t *testing.T) {
	store := newFakeItineraryStore()
	svc := NewService(store, nil, testLogger())

	it, err := svc.ScheduleForConsortium(context.Background(), "tenant-1", sampleConsortium(), models.CreateItineraryRequest{
		Vessel: "MV ALPHA",
		POL:    "VLC",
		ETD:    "not-a-date",
	})
	require.NoError(t, err)
	assert.Nil(t, it.ETD)
	assert.Nil(t, it.Week)
}

func TestSave_ResequencesAndReplaces(t *testing.T) {
	store := newFakeItineraryStore()
	svc := NewService(store, nil, testLogger())

	it, err := svc.ScheduleForConsortium(context.Background(), "tenant-1", sampleConsortium(), models.CreateItineraryRequest{
		Vessel: "MV ALPHA",
		POL:    "VLC",
	})
	require.NoError(t, err)

	editor, err := svc.Edit(context.Background(), "tenant-1", it.ID)
	require.NoError(t, err)

	// Drop the middle call: the save closes the gap.
	require.NoError(t, editor.RemoveEscala(it.Escalas[1].ID))

	saved, err := svc.Save(context.Background(), "tenant-1", editor)
	require.NoError(t, err)

	require.Len(t, saved.Escalas, 2)
	assert.Equal(t, 1, saved.Escalas[0].Position)
	assert.Equal(t, 2, saved.Escalas[1].Position)
	assert.Equal(t, "SHA", saved.Escalas[0].PortCode)
	assert.Equal(t, "JEA", saved.Escalas[1].PortCode)
	assert.Equal(t, 1, store.updates)
}

func TestDelete(t *testing.T) {
	store := newFakeItineraryStore()
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier, testLogger())

	it, err := svc.ScheduleForConsortium(context.Background(), "tenant-1", sampleConsortium(), models.CreateItineraryRequest{
		Vessel: "MV ALPHA",
		POL:    "VLC",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "tenant-1", it.ID))

	got, err := store.GetByID(context.Background(), "tenant-1", it.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, notifier.deleted)
}

func TestEdit_NotFound(t *testing.T) {
	svc := NewService(newFakeItineraryStore(), nil, testLogger())
	_, err := svc.Edit(context.Background(), "tenant-1", "missing")
	require.Error(t, err)
}
