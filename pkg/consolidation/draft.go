package consolidation

import (
	"github.com/harborline/keel/pkg/catalog"
	"github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
)

// addService folds a service into the draft with every destination active.
// Adding a service that is already a member is an error, not a silent no-op.
func addService(draft *models.ConsortiumDraft, svc models.Service) error {
	for _, m := range draft.Members {
		if m.Service.ID == svc.ID {
			return errors.NewValidationErrorf("service %q (%s) is already part of the consortium", svc.Name, svc.CarrierName).WithField("service_id")
		}
	}

	destinations := make([]models.DraftDestination, 0, len(svc.Destinations))
	for _, d := range svc.Destinations {
		destinations = append(destinations, models.DraftDestination{Destination: d, Active: true})
	}

	draft.Members = append(draft.Members, models.DraftMember{Service: svc, Destinations: destinations})
	return nil
}

// ToggleDestination flips the selection state of one member destination in
// the draft. Nothing is persisted until Save.
func ToggleDestination(draft *models.ConsortiumDraft, serviceID, destinationID string) error {
	for i := range draft.Members {
		if draft.Members[i].Service.ID != serviceID {
			continue
		}
		for j := range draft.Members[i].Destinations {
			if draft.Members[i].Destinations[j].Destination.ID == destinationID {
				draft.Members[i].Destinations[j].Active = !draft.Members[i].Destinations[j].Active
				return nil
			}
		}
		return errors.NewValidationErrorf("destination %s not found on service %s", destinationID, serviceID).WithField("destination_id")
	}
	return errors.NewValidationErrorf("service %s is not part of the draft", serviceID).WithField("service_id")
}

// consolidate computes the deduplicated destination set for a draft.
//
// Walking members in order and each member's active destinations in
// rotation order, the first declaration of a port code wins: its name,
// region and ordering are retained. A later member declaring the same port
// with a different region is a conflict; it is recorded, never resolved.
// Port code is the authoritative key whenever present; a destination with no
// port code falls back to its record id so it can never collide.
func consolidate(draft *models.ConsortiumDraft) ([]models.ConsolidatedDestination, bool) {
	type first struct {
		index  int
		region models.Region
	}

	seen := make(map[string]first)
	var out []models.ConsolidatedDestination
	conflict := false

	for _, member := range draft.Members {
		for _, dd := range member.Destinations {
			if !dd.Active {
				continue
			}
			d := dd.Destination

			key := d.PortCode
			if key == "" {
				key = "id:" + d.ID
			}

			if prev, ok := seen[key]; ok {
				if d.Region != prev.region {
					conflict = true
				}
				continue
			}

			seen[key] = first{index: len(out), region: d.Region}
			out = append(out, models.ConsolidatedDestination{
				PortCode:        d.PortCode,
				PortName:        d.PortName,
				Region:          d.Region,
				Position:        len(out),
				SourceServiceID: member.Service.ID,
			})
		}
	}

	return out, conflict
}

// Aggregates computes the derived display counts for a draft: vessels
// deduplicated by normalized name across all member pools, destinations
// deduplicated by port code across the active set.
func Aggregates(draft *models.ConsortiumDraft) models.ConsortiumAggregates {
	vessels := make(map[string]bool)
	for _, member := range draft.Members {
		for _, v := range member.Service.Vessels {
			name := catalog.NormalizeVesselName(v)
			if name != "" {
				vessels[name] = true
			}
		}
	}

	destinations, _ := consolidate(draft)

	return models.ConsortiumAggregates{
		UniqueVessels:      len(vessels),
		UniqueDestinations: len(destinations),
	}
}
