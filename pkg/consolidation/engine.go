// Package consolidation builds and edits consortiums from carrier-specific
// services: manual mixing, group-by-name discovery, and single-service
// conversion via cloning.
package consolidation

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/harborline/keel/pkg/catalog"
	"github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

// ServiceStore is the slice of the persistence collaborator the engine needs
// for services.
type ServiceStore interface {
	GetByID(ctx context.Context, tenantID string, id string) (*models.Service, error)
	List(ctx context.Context, tenantID string, filter models.ServiceFilter) ([]models.Service, error)
	Create(ctx context.Context, tenantID string, req models.CreateServiceRequest) (*models.Service, error)
}

// ConsortiumStore is the slice of the persistence collaborator the engine
// needs for consortiums.
type ConsortiumStore interface {
	GetByID(ctx context.Context, tenantID string, id string) (*models.Consortium, error)
	Create(ctx context.Context, tenantID string, consortium *models.Consortium) (*models.Consortium, error)
	Update(ctx context.Context, tenantID string, id string, consortium *models.Consortium) (*models.Consortium, error)
	Delete(ctx context.Context, tenantID string, id string) error
}

// Notifier receives consortium lifecycle notifications after a successful
// persistence call. Failures are logged, never surfaced: consolidation does
// not depend on downstream consumers.
type Notifier interface {
	ConsortiumSaved(ctx context.Context, consortium *models.Consortium, isNew bool)
	ConsortiumDeleted(ctx context.Context, tenantID string, id string)
	ServiceCloned(ctx context.Context, clone *models.Service, baseServiceID string)
}

// Engine assembles consortium drafts and persists them.
type Engine struct {
	services    ServiceStore
	consortiums ConsortiumStore
	notifier    Notifier
	logger      ectologger.Logger
}

// NewEngine creates a consolidation engine. notifier may be nil.
func NewEngine(services ServiceStore, consortiums ConsortiumStore, notifier Notifier, logger ectologger.Logger) *Engine {
	return &Engine{
		services:    services,
		consortiums: consortiums,
		notifier:    notifier,
		logger:      logger,
	}
}

// AddService loads a service and folds it into the draft, destinations all
// active by default. Any combination of names and carriers is allowed here;
// adding a service twice is rejected.
func (e *Engine) AddService(ctx context.Context, tenantID string, draft *models.ConsortiumDraft, serviceID string) error {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.AddService")
	defer span.End()

	svc, err := e.services.GetByID(ctx, tenantID, serviceID)
	if err != nil {
		return errors.WrapStep("load service", err)
	}
	if svc == nil {
		return errors.NewValidationErrorf("service %s not found", serviceID).WithField("service_id")
	}
	if !svc.Active {
		return errors.NewValidationErrorf("service %q is inactive and cannot be consolidated", svc.Name).WithField("service_id")
	}

	svc.Vessels = catalog.NormalizeVessels(svc.Vessels)
	return addService(draft, *svc)
}

// BuildManualMix assembles a draft from explicitly chosen services.
func (e *Engine) BuildManualMix(ctx context.Context, tenantID string, req models.ManualMixDraft) (*models.ConsortiumDraft, error) {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.BuildManualMix")
	defer span.End()

	draft := &models.ConsortiumDraft{Name: req.Name, Description: req.Description}
	for _, id := range req.ServiceIDs {
		if err := e.AddService(ctx, tenantID, draft, id); err != nil {
			return nil, err
		}
	}
	return draft, nil
}

// BuildFromGroups assembles a draft from services selected within discovery
// groups. Unlike manual mixing, this mode enforces name homogeneity: every
// selected service must share one normalized name. The common name becomes
// the draft's default name when the caller did not supply one.
func (e *Engine) BuildFromGroups(ctx context.Context, tenantID string, req models.GroupDiscoveryDraft) (*models.ConsortiumDraft, error) {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.BuildFromGroups")
	defer span.End()

	draft := &models.ConsortiumDraft{Name: req.Name, Description: req.Description}

	groupName := ""
	for _, id := range req.ServiceIDs {
		svc, err := e.services.GetByID(ctx, tenantID, id)
		if err != nil {
			return nil, errors.WrapStep("load service", err)
		}
		if svc == nil {
			return nil, errors.NewValidationErrorf("service %s not found", id).WithField("service_ids")
		}
		if !svc.Active {
			return nil, errors.NewValidationErrorf("service %q is inactive and cannot be consolidated", svc.Name).WithField("service_ids")
		}

		normalized := catalog.NormalizeName(svc.Name)
		if groupName == "" {
			groupName = normalized
		} else if normalized != groupName {
			return nil, errors.NewValidationError("all selected services must share the same name").WithField("service_ids")
		}

		svc.Vessels = catalog.NormalizeVessels(svc.Vessels)
		if err := addService(draft, *svc); err != nil {
			return nil, err
		}
	}

	if draft.Name == "" {
		draft.Name = groupName
	}
	return draft, nil
}

// Save validates the draft, consolidates its destinations and persists the
// consortium. A region conflict between members flags the record for human
// review; it never blocks the save.
func (e *Engine) Save(ctx context.Context, tenantID string, draft *models.ConsortiumDraft) (*models.Consortium, error) {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.Save")
	defer span.End()

	if draft.Name == "" {
		return nil, errors.NewValidationError("consortium name is required").WithField("name")
	}
	if len(draft.Members) == 0 {
		return nil, errors.NewValidationError("a consortium needs at least one member service").WithField("members")
	}

	destinations, conflict := consolidate(draft)

	consortium := &models.Consortium{
		ID:             draft.ID,
		TenantID:       tenantID,
		Name:           draft.Name,
		Description:    draft.Description,
		RequiresReview: conflict,
		Destinations:   destinations,
	}
	for i, m := range draft.Members {
		consortium.Members = append(consortium.Members, models.ConsortiumMember{ServiceID: m.Service.ID, Position: i})
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":       tenantID,
		"name":            draft.Name,
		"members":         len(consortium.Members),
		"destinations":    len(destinations),
		"requires_review": conflict,
	})

	isNew := draft.ID == ""
	var saved *models.Consortium
	var err error
	if isNew {
		saved, err = e.consortiums.Create(ctx, tenantID, consortium)
		if err != nil {
			log.WithError(err).Error("failed to create consortium")
			return nil, errors.WrapStep("create consortium", err)
		}
	} else {
		// The review flag is sticky: an existing flag survives edits until a
		// human explicitly resolves it, even when the edited draft no longer
		// conflicts.
		existing, getErr := e.consortiums.GetByID(ctx, tenantID, draft.ID)
		if getErr != nil {
			return nil, errors.WrapStep("load consortium", getErr)
		}
		if existing == nil {
			return nil, errors.NewValidationErrorf("consortium %s not found", draft.ID).WithField("id")
		}
		if existing.RequiresReview {
			consortium.RequiresReview = true
		}

		saved, err = e.consortiums.Update(ctx, tenantID, draft.ID, consortium)
		if err != nil {
			log.WithError(err).Error("failed to update consortium")
			return nil, errors.WrapStep("update consortium", err)
		}
	}

	log.WithFields(map[string]any{"id": saved.ID}).Info("saved consortium")

	if e.notifier != nil {
		e.notifier.ConsortiumSaved(ctx, saved, isNew)
	}
	return saved, nil
}

// ClearReview resets the review flag after a human has resolved the
// conflicting destinations. This is the only way the flag is ever cleared.
func (e *Engine) ClearReview(ctx context.Context, tenantID string, id string) (*models.Consortium, error) {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.ClearReview")
	defer span.End()

	existing, err := e.consortiums.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, errors.WrapStep("load consortium", err)
	}
	if existing == nil {
		return nil, errors.NewValidationErrorf("consortium %s not found", id).WithField("id")
	}

	existing.RequiresReview = false
	saved, err := e.consortiums.Update(ctx, tenantID, id, existing)
	if err != nil {
		return nil, errors.WrapStep("update consortium", err)
	}

	if e.notifier != nil {
		e.notifier.ConsortiumSaved(ctx, saved, false)
	}
	return saved, nil
}

// Delete removes a consortium. Irreversible; callers are expected to have
// obtained explicit confirmation first.
func (e *Engine) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.Delete")
	defer span.End()

	if err := e.consortiums.Delete(ctx, tenantID, id); err != nil {
		return errors.WrapStep("delete consortium", err)
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"id":        id,
	}).Info("deleted consortium")

	if e.notifier != nil {
		e.notifier.ConsortiumDeleted(ctx, tenantID, id)
	}
	return nil
}

// DraftFor rebuilds an editable draft from a stored consortium, restoring
// each member's destination toggles from the consolidated set.
func (e *Engine) DraftFor(ctx context.Context, tenantID string, consortium *models.Consortium) (*models.ConsortiumDraft, error) {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.DraftFor")
	defer span.End()

	selected := make(map[string]string, len(consortium.Destinations))
	for _, d := range consortium.Destinations {
		selected[d.PortCode] = d.SourceServiceID
	}

	draft := &models.ConsortiumDraft{
		ID:          consortium.ID,
		Name:        consortium.Name,
		Description: consortium.Description,
	}

	for _, m := range consortium.Members {
		svc, err := e.services.GetByID(ctx, tenantID, m.ServiceID)
		if err != nil {
			return nil, errors.WrapStep("load service", err)
		}
		if svc == nil {
			continue // member service was deleted out from under the consortium
		}
		svc.Vessels = catalog.NormalizeVessels(svc.Vessels)

		member := models.DraftMember{Service: *svc}
		for _, d := range svc.Destinations {
			member.Destinations = append(member.Destinations, models.DraftDestination{
				Destination: d,
				Active:      selected[d.PortCode] != "",
			})
		}
		draft.Members = append(draft.Members, member)
	}

	return draft, nil
}

// AvailableServices returns, for a consortium under edit, the active
// services that could still be added: first those sharing a normalized name
// with an existing member from a carrier not yet represented, then every
// other active non-member as a general catch-all.
func (e *Engine) AvailableServices(ctx context.Context, tenantID string, consortium *models.Consortium) (*models.AvailableServices, error) {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.AvailableServices")
	defer span.End()

	active := true
	services, err := e.services.List(ctx, tenantID, models.ServiceFilter{Active: &active})
	if err != nil {
		return nil, errors.WrapStep("list services", err)
	}

	memberIDs := make(map[string]bool, len(consortium.Members))
	memberNames := make(map[string]bool)
	memberCarriers := make(map[string]bool)
	for _, m := range consortium.Members {
		memberIDs[m.ServiceID] = true
	}
	for _, svc := range services {
		if memberIDs[svc.ID] {
			memberNames[catalog.NormalizeName(svc.Name)] = true
			memberCarriers[svc.CarrierID] = true
		}
	}

	result := &models.AvailableServices{}
	for _, svc := range services {
		if memberIDs[svc.ID] {
			continue
		}
		if memberNames[catalog.NormalizeName(svc.Name)] && !memberCarriers[svc.CarrierID] {
			result.SameName = append(result.SameName, svc)
		} else {
			result.Other = append(result.Other, svc)
		}
	}

	return result, nil
}

// AggregatesFor loads the member services of a stored consortium and
// computes its display counts.
func (e *Engine) AggregatesFor(ctx context.Context, tenantID string, consortium *models.Consortium) (models.ConsortiumAggregates, error) {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.AggregatesFor")
	defer span.End()

	vessels := make(map[string]bool)
	for _, m := range consortium.Members {
		svc, err := e.services.GetByID(ctx, tenantID, m.ServiceID)
		if err != nil {
			return models.ConsortiumAggregates{}, errors.WrapStep("load service", err)
		}
		if svc == nil {
			continue
		}
		for _, v := range svc.Vessels {
			name := catalog.NormalizeVesselName(v)
			if name != "" {
				vessels[name] = true
			}
		}
	}

	seen := make(map[string]bool, len(consortium.Destinations))
	for _, d := range consortium.Destinations {
		key := d.PortCode
		if key == "" {
			key = fmt.Sprintf("pos:%d", d.Position)
		}
		seen[key] = true
	}

	return models.ConsortiumAggregates{
		UniqueVessels:      len(vessels),
		UniqueDestinations: len(seen),
	}, nil
}
