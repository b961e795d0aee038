package voyage

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/harborline/keel/pkg/dates"
	"github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

// ItineraryStore is the slice of the persistence collaborator the voyage
// service needs. Update replaces the full escala collection along with the
// header.
type ItineraryStore interface {
	GetByID(ctx context.Context, tenantID string, id string) (*models.Itinerary, error)
	List(ctx context.Context, tenantID string) ([]models.Itinerary, error)
	Create(ctx context.Context, tenantID string, itinerary *models.Itinerary) (*models.Itinerary, error)
	Update(ctx context.Context, tenantID string, id string, itinerary *models.Itinerary) (*models.Itinerary, error)
	Delete(ctx context.Context, tenantID string, id string) error
}

// Notifier receives itinerary lifecycle notifications after a successful
// persistence call.
type Notifier interface {
	ItinerarySaved(ctx context.Context, itinerary *models.Itinerary, isNew bool)
	ItineraryDeleted(ctx context.Context, tenantID string, id string)
}

// Service schedules, edits and deletes sailings.
type Service struct {
	itineraries ItineraryStore
	notifier    Notifier
	logger      ectologger.Logger
}

// NewService creates a voyage service. notifier may be nil.
func NewService(itineraries ItineraryStore, notifier Notifier, logger ectologger.Logger) *Service {
	return &Service{
		itineraries: itineraries,
		notifier:    notifier,
		logger:      logger,
	}
}

// ScheduleForConsortium creates a sailing for a consortium, seeding one
// escala per consolidated active destination in consolidated order. A pure
// consortium sailing carries no carrier attribution.
func (s *Service) ScheduleForConsortium(ctx context.Context, tenantID string, consortium *models.Consortium, req models.CreateItineraryRequest) (*models.Itinerary, error) {
	ctx, span := tracing.StartSpan(ctx, "voyage.Service.ScheduleForConsortium")
	defer span.End()

	itinerary := newItinerary(req)
	itinerary.ConsortiumID = &consortium.ID
	itinerary.ServiceName = consortium.Name
	seedEscalas(itinerary, consortium.Destinations)

	return s.create(ctx, tenantID, itinerary)
}

// ScheduleForService creates a sailing attributed to a single carrier's
// service, seeding escalas from that service's rotation.
func (s *Service) ScheduleForService(ctx context.Context, tenantID string, svc *models.Service, req models.CreateItineraryRequest) (*models.Itinerary, error) {
	ctx, span := tracing.StartSpan(ctx, "voyage.Service.ScheduleForService")
	defer span.End()

	itinerary := newItinerary(req)
	itinerary.ServiceID = &svc.ID
	itinerary.ServiceName = svc.Name
	carrier := svc.CarrierName
	itinerary.CarrierName = &carrier

	destinations := make([]models.ConsolidatedDestination, 0, len(svc.Destinations))
	for _, d := range svc.Destinations {
		destinations = append(destinations, models.ConsolidatedDestination{
			PortCode: d.PortCode,
			PortName: d.PortName,
			Region:   d.Region,
			Position: d.Position,
		})
	}
	seedEscalas(itinerary, destinations)

	return s.create(ctx, tenantID, itinerary)
}

func newItinerary(req models.CreateItineraryRequest) *models.Itinerary {
	itinerary := &models.Itinerary{
		ID:         uuid.New().String(),
		Vessel:     req.Vessel,
		VoyageCode: req.VoyageCode,
		POL:        req.POL,
	}
	// Malformed departure dates leave the ETD unset rather than failing the
	// request; derived fields stay null until a valid date arrives.
	itinerary.ETD = dates.ParseCalendarDatePtr(req.ETD)
	itinerary.Week = dates.WeekPtr(itinerary.ETD)
	return itinerary
}

func seedEscalas(itinerary *models.Itinerary, destinations []models.ConsolidatedDestination) {
	for i, d := range destinations {
		name := d.PortName
		escala := models.Escala{
			ID:          uuid.New().String(),
			ItineraryID: itinerary.ID,
			PortCode:    d.PortCode,
			Region:      d.Region,
			Position:    i + 1,
		}
		if name != "" {
			escala.PortName = &name
		}
		itinerary.Escalas = append(itinerary.Escalas, escala)
	}
}

func (s *Service) create(ctx context.Context, tenantID string, itinerary *models.Itinerary) (*models.Itinerary, error) {
	saved, err := s.itineraries.Create(ctx, tenantID, itinerary)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to create itinerary")
		return nil, errors.WrapStep("create itinerary", err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"id":        saved.ID,
		"escalas":   len(saved.Escalas),
	}).Info("scheduled itinerary")

	if s.notifier != nil {
		s.notifier.ItinerarySaved(ctx, saved, true)
	}
	return saved, nil
}

// Edit loads a sailing into an editor.
func (s *Service) Edit(ctx context.Context, tenantID string, id string) (*Editor, error) {
	ctx, span := tracing.StartSpan(ctx, "voyage.Service.Edit")
	defer span.End()

	itinerary, err := s.itineraries.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, errors.WrapStep("load itinerary", err)
	}
	if itinerary == nil {
		return nil, errors.NewValidationErrorf("itinerary %s not found", id).WithField("id")
	}
	return NewEditor(*itinerary), nil
}

// Save persists the edited voyage: escalas are re-sequenced to a dense 1..N
// order and the stored collection is replaced wholesale. Full replacement is
// deliberate; it trades write volume for never leaking orphaned escalas.
func (s *Service) Save(ctx context.Context, tenantID string, editor *Editor) (*models.Itinerary, error) {
	ctx, span := tracing.StartSpan(ctx, "voyage.Service.Save")
	defer span.End()

	editor.Resequence()
	itinerary := editor.Itinerary()

	saved, err := s.itineraries.Update(ctx, tenantID, itinerary.ID, &itinerary)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to save itinerary")
		return nil, errors.WrapStep("update itinerary", err)
	}

	if s.notifier != nil {
		s.notifier.ItinerarySaved(ctx, saved, false)
	}
	return saved, nil
}

// Delete removes a sailing permanently. The caller must have obtained
// explicit confirmation; this operation is irreversible.
func (s *Service) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "voyage.Service.Delete")
	defer span.End()

	if err := s.itineraries.Delete(ctx, tenantID, id); err != nil {
		return errors.WrapStep("delete itinerary", err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"id":        id,
	}).Info("deleted itinerary")

	if s.notifier != nil {
		s.notifier.ItineraryDeleted(ctx, tenantID, id)
	}
	return nil
}
