package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/harborline/keel/pkg/graph"
	"github.com/harborline/keel/pkg/metrics"
	"github.com/harborline/keel/pkg/models"
)

// Broadcaster fans lifecycle notifications out to the Kafka emitter and,
// when configured, the graph projection. Both targets are best-effort: a
// failed projection is logged and the save stands.
type Broadcaster struct {
	emitter   *Emitter
	projector *graph.Projector
	logger    ectologger.Logger
}

// NewBroadcaster creates a broadcaster. emitter and projector may each be
// nil when the corresponding target is not configured.
func NewBroadcaster(emitter *Emitter, projector *graph.Projector, logger ectologger.Logger) *Broadcaster {
	return &Broadcaster{
		emitter:   emitter,
		projector: projector,
		logger:    logger,
	}
}

func (b *Broadcaster) ConsortiumSaved(ctx context.Context, consortium *models.Consortium, isNew bool) {
	metrics.RecordConsortiumSave(consortium.TenantID, isNew)

	if b.emitter != nil {
		b.emitter.ConsortiumSaved(ctx, consortium, isNew)
	}

	if b.projector != nil {
		if err := b.projector.ProjectConsortium(ctx, consortium); err != nil {
			metrics.RecordGraphProjection("error")
			b.logger.WithContext(ctx).WithError(err).WithField("consortium_id", consortium.ID).Error("graph projection failed")
		} else {
			metrics.RecordGraphProjection("success")
		}
	}
}

func (b *Broadcaster) ConsortiumDeleted(ctx context.Context, tenantID string, id string) {
	if b.emitter != nil {
		b.emitter.ConsortiumDeleted(ctx, tenantID, id)
	}

	if b.projector != nil {
		if err := b.projector.RemoveConsortium(ctx, tenantID, id); err != nil {
			metrics.RecordGraphProjection("error")
			b.logger.WithContext(ctx).WithError(err).WithField("consortium_id", id).Error("graph removal failed")
		} else {
			metrics.RecordGraphProjection("success")
		}
	}
}

func (b *Broadcaster) ServiceCloned(ctx context.Context, clone *models.Service, baseServiceID string) {
	metrics.RecordServiceClone(clone.TenantID)

	if b.emitter != nil {
		b.emitter.ServiceCloned(ctx, clone, baseServiceID)
	}
}

func (b *Broadcaster) ItinerarySaved(ctx context.Context, itinerary *models.Itinerary, isNew bool) {
	metrics.RecordItinerarySave(itinerary.TenantID, isNew)

	if b.emitter != nil {
		b.emitter.ItinerarySaved(ctx, itinerary, isNew)
	}
}

func (b *Broadcaster) ItineraryDeleted(ctx context.Context, tenantID string, id string) {
	if b.emitter != nil {
		b.emitter.ItineraryDeleted(ctx, tenantID, id)
	}
}
