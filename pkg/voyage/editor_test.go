package voyage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/keel/pkg/dates"
	kerrors "github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
)

func date(value string) *time.Time {
	t := dates.ParseCalendarDatePtr(value)
	if t == nil {
		panic("bad test date: " + value)
	}
	return t
}

func sampleItinerary() models.Itinerary {
	id := uuid.New().String()
	return models.Itinerary{
		ID:          id,
		ServiceName: "ASIA EXPRESS",
		Vessel:      "MV ALPHA",
		VoyageCode:  "101W",
		POL:         "VLC",
		Escalas: []models.Escala{
			{ID: "e1", ItineraryID: id, PortCode: "SHA", Region: models.RegionAsia, Position: 1},
			{ID: "e2", ItineraryID: id, PortCode: "SIN", Region: models.RegionAsia, Position: 2},
			{ID: "e3", ItineraryID: id, PortCode: "JEA", Region: models.RegionIndiaMiddleEast, Position: 3},
		},
	}
}

func TestSetETD_RecomputesWeekAndAllTransits(t *testing.T) {
	editor := NewEditor(sampleItinerary())
	require.NoError(t, editor.SetEscalaETA("e1", date("2024-01-20")))
	require.NoError(t, editor.SetEscalaETA("e2", date("2024-01-25")))

	editor.SetETD(date("2024-01-10"))

	it := editor.Itinerary()
	require.NotNil(t, it.Week)
	assert.Equal(t, 2, *it.Week)

	require.NotNil(t, it.Escalas[0].TransitDays)
	assert.Equal(t, 10, *it.Escalas[0].TransitDays)
	require.NotNil(t, it.Escalas[1].TransitDays)
	assert.Equal(t, 15, *it.Escalas[1].TransitDays)
	// No ETA yet: stays null.
	assert.Nil(t, it.Escalas[2].TransitDays)
}

func TestSetETD_AfterArrivalYieldsNullTransit(t *testing.T) {
	editor := NewEditor(sampleItinerary())
	require.NoError(t, editor.SetEscalaETA("e1", date("2024-01-05")))

	editor.SetETD(date("2024-01-10"))

	it := editor.Itinerary()
	assert.Nil(t, it.Escalas[0].TransitDays)
}

func TestSetETD_NilClearsDerivedFields(t *testing.T) {
	editor := NewEditor(sampleItinerary())
	editor.SetETD(date("2024-01-10"))
	require.NoError(t, editor.SetEscalaETA("e1", date("2024-01-20")))

	editor.SetETD(nil)

	it := editor.Itinerary()
	assert.Nil(t, it.Week)
	assert.Nil(t, it.Escalas[0].TransitDays)
	// The ETA itself is untouched; only the derived figure is cleared.
	require.NotNil(t, it.Escalas[0].ETA)
}

func TestSetEscalaETA_RecomputesThatEscalaOnly(t *testing.T) {
	editor := NewEditor(sampleItinerary())
	editor.SetETD(date("2024-01-10"))

	require.NoError(t, editor.SetEscalaETA("e2", date("2024-01-18")))

	it := editor.Itinerary()
	assert.Nil(t, it.Escalas[0].TransitDays)
	require.NotNil(t, it.Escalas[1].TransitDays)
	assert.Equal(t, 8, *it.Escalas[1].TransitDays)

	require.NoError(t, editor.SetEscalaETA("e2", nil))
	assert.Nil(t, editor.Itinerary().Escalas[1].TransitDays)

	err := editor.SetEscalaETA("missing", date("2024-01-18"))
	assert.True(t, kerrors.IsValidation(err))
}

func TestAddEscala(t *testing.T) {
	editor := NewEditor(sampleItinerary())

	escala, err := editor.AddEscala("RTM", "Rotterdam", models.RegionEurope)
	require.NoError(t, err)
	assert.Equal(t, 4, escala.Position)
	assert.Nil(t, escala.ETA)
	assert.Nil(t, escala.TransitDays)
	require.NotNil(t, escala.PortName)
	assert.Equal(t, "Rotterdam", *escala.PortName)

	_, err = editor.AddEscala("XXX", "", models.Region("ATLANTIS"))
	assert.True(t, kerrors.IsValidation(err))
}

func TestRemoveEscala_ResequencesDenseOnSave(t *testing.T) {
	editor := NewEditor(sampleItinerary())

	require.NoError(t, editor.RemoveEscala("e2"))
	editor.Resequence()

	it := editor.Itinerary()
	require.Len(t, it.Escalas, 2)
	assert.Equal(t, "e1", it.Escalas[0].ID)
	assert.Equal(t, 1, it.Escalas[0].Position)
	assert.Equal(t, "e3", it.Escalas[1].ID)
	assert.Equal(t, 2, it.Escalas[1].Position)
}

func TestSetEscalaRegionAndPort(t *testing.T) {
	editor := NewEditor(sampleItinerary())

	require.NoError(t, editor.SetEscalaRegion("e1", models.RegionEurope))
	assert.Equal(t, models.RegionEurope, editor.Itinerary().Escalas[0].Region)

	err := editor.SetEscalaRegion("e1", models.Region("NOWHERE"))
	assert.True(t, kerrors.IsValidation(err))

	require.NoError(t, editor.SetEscalaPort("e1", "NGB", "Ningbo"))
	it := editor.Itinerary()
	assert.Equal(t, "NGB", it.Escalas[0].PortCode)
	require.NotNil(t, it.Escalas[0].PortName)
	assert.Equal(t, "Ningbo", *it.Escalas[0].PortName)
}

func TestReplaceEscalas(t *testing.T) {
	editor := NewEditor(sampleItinerary())
	editor.SetETD(date("2024-01-10"))

	err := editor.ReplaceEscalas([]models.EscalaInput{
		{ID: "e3", PortCode: "JEA", Region: models.RegionIndiaMiddleEast, ETA: "2024-01-22"},
		{PortCode: "RTM", PortName: "Rotterdam", Region: models.RegionEurope, ETA: "2024-01-30"},
	})
	require.NoError(t, err)

	it := editor.Itinerary()
	require.Len(t, it.Escalas, 2)

	// Kept entry retains its ID and takes the new ordinal.
	assert.Equal(t, "e3", it.Escalas[0].ID)
	assert.Equal(t, 1, it.Escalas[0].Position)
	require.NotNil(t, it.Escalas[0].TransitDays)
	assert.Equal(t, 12, *it.Escalas[0].TransitDays)

	// New entry gets a generated ID and the transit against the current ETD.
	assert.NotEmpty(t, it.Escalas[1].ID)
	assert.NotEqual(t, "e3", it.Escalas[1].ID)
	assert.Equal(t, 2, it.Escalas[1].Position)
	require.NotNil(t, it.Escalas[1].PortName)
	assert.Equal(t, "Rotterdam", *it.Escalas[1].PortName)
	require.NotNil(t, it.Escalas[1].TransitDays)
	assert.Equal(t, 20, *it.Escalas[1].TransitDays)
}

func TestReplaceEscalas_UnknownRegionRejectsWholeBatch(t *testing.T) {
	editor := NewEditor(sampleItinerary())

	err := editor.ReplaceEscalas([]models.EscalaInput{
		{PortCode: "RTM", Region: models.RegionEurope},
		{PortCode: "XXX", Region: models.Region("ATLANTIS")},
	})
	assert.True(t, kerrors.IsValidation(err))
	// The stored collection is untouched on a rejected batch.
	assert.Len(t, editor.Itinerary().Escalas, 3)
}
