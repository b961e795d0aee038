// Package events handles event emission for consortium, service and
// itinerary lifecycle changes.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/harborline/keel/pkg/kafka"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

// Emitter publishes lifecycle events. It satisfies the notifier interfaces
// of the consolidation engine and the voyage service; publish failures are
// logged and swallowed so event delivery never fails a save.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *Emitter) publish(ctx context.Context, event *kafka.DomainEvent) {
	if err := e.producer.Publish(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", event.EventType).Error("Failed to emit event")
	}
}

// ConsortiumSaved emits consortium.created or consortium.updated
func (e *Emitter) ConsortiumSaved(ctx context.Context, consortium *models.Consortium, isNew bool) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ConsortiumSaved")
	defer span.End()

	eventType := "consortium.updated"
	if isNew {
		eventType = "consortium.created"
	}

	data, _ := json.Marshal(consortium)
	e.publish(ctx, &kafka.DomainEvent{
		EventType: eventType,
		TenantID:  consortium.TenantID,
		SubjectID: consortium.ID,
		Subject:   "consortium",
		Data:      data,
	})
}

// ConsortiumDeleted emits consortium.deleted
func (e *Emitter) ConsortiumDeleted(ctx context.Context, tenantID string, id string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ConsortiumDeleted")
	defer span.End()

	e.publish(ctx, &kafka.DomainEvent{
		EventType: "consortium.deleted",
		TenantID:  tenantID,
		SubjectID: id,
		Subject:   "consortium",
	})
}

// ServiceCloned emits service.cloned with the base service in the payload
func (e *Emitter) ServiceCloned(ctx context.Context, clone *models.Service, baseServiceID string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ServiceCloned")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"clone":           clone,
		"base_service_id": baseServiceID,
	})
	e.publish(ctx, &kafka.DomainEvent{
		EventType: "service.cloned",
		TenantID:  clone.TenantID,
		SubjectID: clone.ID,
		Subject:   "service",
		Data:      data,
	})
}

// ItinerarySaved emits itinerary.created or itinerary.updated
func (e *Emitter) ItinerarySaved(ctx context.Context, itinerary *models.Itinerary, isNew bool) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ItinerarySaved")
	defer span.End()

	eventType := "itinerary.updated"
	if isNew {
		eventType = "itinerary.created"
	}

	data, _ := json.Marshal(itinerary)
	e.publish(ctx, &kafka.DomainEvent{
		EventType: eventType,
		TenantID:  itinerary.TenantID,
		SubjectID: itinerary.ID,
		Subject:   "itinerary",
		Data:      data,
	})
}

// ItineraryDeleted emits itinerary.deleted
func (e *Emitter) ItineraryDeleted(ctx context.Context, tenantID string, id string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ItineraryDeleted")
	defer span.End()

	e.publish(ctx, &kafka.DomainEvent{
		EventType: "itinerary.deleted",
		TenantID:  tenantID,
		SubjectID: id,
		Subject:   "itinerary",
	})
}
