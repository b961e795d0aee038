package consolidation

import (
	"context"

	"github.com/harborline/keel/pkg/catalog"
	"github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

// Convert turns a single-carrier service into a multi-carrier consortium
// draft by cloning the base service for each additional carrier.
//
// Clones are created strictly one after another: the next carrier's create
// call only starts once the previous one has resolved, because the
// per-carrier outcome report must know exactly which creates committed.
// Nothing is retried automatically. When some clones fail after others
// succeeded, the succeeded ones are left in place as ordinary services, the
// result lists every outcome, and the returned error is a PartialFailure;
// the caller decides whether to save a consortium over the reduced set.
func (e *Engine) Convert(ctx context.Context, tenantID string, req models.ConversionDraft) (*models.ConversionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "consolidation.Engine.Convert")
	defer span.End()

	// The consortium name is mandatory in this mode. The base service's name
	// is offered to the user as a placeholder only; it is never assumed.
	if req.Name == "" {
		return nil, errors.NewValidationError("an explicit consortium name is required when converting a service").WithField("name")
	}
	if len(req.Carriers) == 0 {
		return nil, errors.NewValidationError("at least one additional carrier is required").WithField("carriers")
	}

	base, err := e.services.GetByID(ctx, tenantID, req.BaseServiceID)
	if err != nil {
		return nil, errors.WrapStep("load base service", err)
	}
	if base == nil {
		return nil, errors.NewValidationErrorf("base service %s not found", req.BaseServiceID).WithField("base_service_id")
	}
	if !base.Active {
		return nil, errors.NewValidationErrorf("service %q is inactive and cannot be converted", base.Name).WithField("base_service_id")
	}
	base.Vessels = catalog.NormalizeVessels(base.Vessels)

	// Reject carriers that already run a service under this name; those are
	// added through mixing or discovery, not by cloning over them.
	all, err := e.services.List(ctx, tenantID, models.ServiceFilter{})
	if err != nil {
		return nil, errors.WrapStep("list services", err)
	}
	baseName := catalog.NormalizeName(base.Name)
	taken := make(map[string]bool)
	for _, svc := range all {
		if catalog.NormalizeName(svc.Name) == baseName {
			taken[svc.CarrierID] = true
		}
	}
	for _, carrier := range req.Carriers {
		if carrier.CarrierID == base.CarrierID || taken[carrier.CarrierID] {
			return nil, errors.NewValidationErrorf("carrier %q already has a service named %q", carrier.CarrierName, base.Name).WithField("carriers")
		}
	}

	result := &models.ConversionResult{}
	clones := make([]models.Service, 0, len(req.Carriers))

	for _, carrier := range req.Carriers {
		outcome := models.CloneOutcome{CarrierID: carrier.CarrierID, CarrierName: carrier.CarrierName}

		clone, err := e.services.Create(ctx, tenantID, cloneRequest(base, carrier))
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"tenant_id":  tenantID,
				"base":       base.ID,
				"carrier_id": carrier.CarrierID,
			}).Error("failed to clone service for carrier")
			outcome.Error = err.Error()
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		outcome.Succeeded = true
		outcome.ServiceID = clone.ID
		result.Outcomes = append(result.Outcomes, outcome)
		clones = append(clones, *clone)

		if e.notifier != nil {
			e.notifier.ServiceCloned(ctx, clone, base.ID)
		}
	}

	if failed := result.Failed(); len(failed) > 0 {
		return result, errors.NewPartialFailure("clone services", result.Outcomes)
	}

	draft := &models.ConsortiumDraft{Name: req.Name, Description: req.Description}
	if err := addService(draft, *base); err != nil {
		return result, err
	}
	for _, clone := range clones {
		if err := addService(draft, clone); err != nil {
			return result, err
		}
	}
	result.Draft = draft

	return result, nil
}

// cloneRequest copies the base service's name, description, vessel pool and
// rotation for a new carrier.
func cloneRequest(base *models.Service, carrier models.CarrierSelector) models.CreateServiceRequest {
	req := models.CreateServiceRequest{
		Name:        base.Name,
		CarrierID:   carrier.CarrierID,
		CarrierName: carrier.CarrierName,
		Description: base.Description,
		Active:      true,
		Vessels:     append([]string(nil), base.Vessels...),
	}
	for _, d := range base.Destinations {
		req.Destinations = append(req.Destinations, models.DestinationInput{
			PortCode: d.PortCode,
			PortName: d.PortName,
			Region:   d.Region,
			Position: d.Position,
		})
	}
	return req
}
