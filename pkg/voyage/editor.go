// Package voyage models one concrete sailing: its departure, its ordered
// escalas, and the transit figures derived from them.
package voyage

import (
	"time"

	"github.com/google/uuid"

	"github.com/harborline/keel/pkg/dates"
	"github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
)

// Editor mutates an itinerary in memory. Derived fields are kept consistent
// synchronously with every edit: changing the ETD recomputes the week number
// and every escala's transit days, changing one escala's ETA recomputes that
// escala only. Nothing is persisted until the service saves the editor.
type Editor struct {
	itinerary models.Itinerary
}

// NewEditor wraps an existing itinerary for editing.
func NewEditor(itinerary models.Itinerary) *Editor {
	return &Editor{itinerary: itinerary}
}

// Itinerary returns the current state of the edited voyage.
func (e *Editor) Itinerary() models.Itinerary {
	return e.itinerary
}

// SetETD sets the departure date and recomputes the week number and every
// escala's transit days. A nil date clears all derived figures.
func (e *Editor) SetETD(etd *time.Time) {
	e.itinerary.ETD = etd
	e.itinerary.Week = dates.WeekPtr(etd)
	for i := range e.itinerary.Escalas {
		e.itinerary.Escalas[i].TransitDays = dates.TransitDays(etd, e.itinerary.Escalas[i].ETA)
	}
}

// SetPOL sets the port of loading.
func (e *Editor) SetPOL(pol string) {
	e.itinerary.POL = pol
}

// SetVessel sets the assigned vessel.
func (e *Editor) SetVessel(vessel string) {
	e.itinerary.Vessel = vessel
}

// SetVoyageCode sets the voyage code.
func (e *Editor) SetVoyageCode(code string) {
	e.itinerary.VoyageCode = code
}

// SetEscalaETA sets one escala's arrival date and recomputes its transit
// days against the current ETD.
func (e *Editor) SetEscalaETA(escalaID string, eta *time.Time) error {
	for i := range e.itinerary.Escalas {
		if e.itinerary.Escalas[i].ID != escalaID {
			continue
		}
		e.itinerary.Escalas[i].ETA = eta
		e.itinerary.Escalas[i].TransitDays = dates.TransitDays(e.itinerary.ETD, eta)
		return nil
	}
	return errors.NewValidationErrorf("escala %s not found", escalaID).WithField("escala_id")
}

// SetEscalaPort updates one escala's port and display name.
func (e *Editor) SetEscalaPort(escalaID, portCode, portName string) error {
	for i := range e.itinerary.Escalas {
		if e.itinerary.Escalas[i].ID != escalaID {
			continue
		}
		e.itinerary.Escalas[i].PortCode = portCode
		if portName != "" {
			e.itinerary.Escalas[i].PortName = &portName
		} else {
			e.itinerary.Escalas[i].PortName = nil
		}
		return nil
	}
	return errors.NewValidationErrorf("escala %s not found", escalaID).WithField("escala_id")
}

// SetEscalaRegion updates one escala's trade region.
func (e *Editor) SetEscalaRegion(escalaID string, region models.Region) error {
	if !region.Valid() {
		return errors.NewValidationErrorf("unknown region %q", region).WithField("region")
	}
	for i := range e.itinerary.Escalas {
		if e.itinerary.Escalas[i].ID != escalaID {
			continue
		}
		e.itinerary.Escalas[i].Region = region
		return nil
	}
	return errors.NewValidationErrorf("escala %s not found", escalaID).WithField("escala_id")
}

// AddEscala appends a port call after the current last one, with no arrival
// estimate yet.
func (e *Editor) AddEscala(portCode, portName string, region models.Region) (*models.Escala, error) {
	if !region.Valid() {
		return nil, errors.NewValidationErrorf("unknown region %q", region).WithField("region")
	}

	maxPos := 0
	for _, esc := range e.itinerary.Escalas {
		if esc.Position > maxPos {
			maxPos = esc.Position
		}
	}

	escala := models.Escala{
		ID:          uuid.New().String(),
		ItineraryID: e.itinerary.ID,
		PortCode:    portCode,
		Region:      region,
		Position:    maxPos + 1,
	}
	if portName != "" {
		escala.PortName = &portName
	}

	e.itinerary.Escalas = append(e.itinerary.Escalas, escala)
	return &escala, nil
}

// ReplaceEscalas swaps the full escala collection for the supplied port
// calls, in input order. Entries with an ID keep it; new entries get one.
// Transit days are recomputed against the current ETD.
func (e *Editor) ReplaceEscalas(inputs []models.EscalaInput) error {
	escalas := make([]models.Escala, 0, len(inputs))
	for i, in := range inputs {
		if !in.Region.Valid() {
			return errors.NewValidationErrorf("unknown region %q", in.Region).WithField("escalas")
		}

		escala := models.Escala{
			ID:          in.ID,
			ItineraryID: e.itinerary.ID,
			PortCode:    in.PortCode,
			Region:      in.Region,
			Position:    i + 1,
		}
		if escala.ID == "" {
			escala.ID = uuid.New().String()
		}
		if in.PortName != "" {
			name := in.PortName
			escala.PortName = &name
		}
		escala.ETA = dates.ParseCalendarDatePtr(in.ETA)
		escala.TransitDays = dates.TransitDays(e.itinerary.ETD, escala.ETA)

		escalas = append(escalas, escala)
	}

	e.itinerary.Escalas = escalas
	return nil
}

// RemoveEscala drops a port call. The remaining escalas keep their positions
// until the next save, which closes any gaps.
func (e *Editor) RemoveEscala(escalaID string) error {
	for i := range e.itinerary.Escalas {
		if e.itinerary.Escalas[i].ID == escalaID {
			e.itinerary.Escalas = append(e.itinerary.Escalas[:i], e.itinerary.Escalas[i+1:]...)
			return nil
		}
	}
	return errors.NewValidationErrorf("escala %s not found", escalaID).WithField("escala_id")
}

// Resequence rewrites escala positions to a dense 1..N run in current slice
// order. Positions never persist with gaps.
func (e *Editor) Resequence() {
	for i := range e.itinerary.Escalas {
		e.itinerary.Escalas[i].Position = i + 1
	}
}
