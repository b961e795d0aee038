package models

// ConsortiumDraft is the in-memory editing state for a consortium. Routes
// build one from a mode-specific request, the engine mutates it, and nothing
// is persisted until an explicit save.
type ConsortiumDraft struct {
	ID          string        `json:"id,omitempty"` // empty while creating
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Members     []DraftMember `json:"members"`
}

// DraftMember is one service folded into a draft, with per-destination
// selection state. Every destination starts active when the service is added.
type DraftMember struct {
	Service      Service            `json:"service"`
	Destinations []DraftDestination `json:"destinations"`
}

// DraftDestination is a member destination plus its toggle state.
type DraftDestination struct {
	Destination Destination `json:"destination"`
	Active      bool        `json:"active"`
}

// ManualMixDraft assembles a consortium from explicitly chosen services, in
// any combination of names and carriers.
type ManualMixDraft struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ServiceIDs  []string `json:"service_ids" validate:"required,min=1"`
}

// GroupDiscoveryDraft folds services selected from discovery groups. All
// selections must share one normalized name; the group's common name becomes
// the draft's default name unless the caller supplies one.
type GroupDiscoveryDraft struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	ServiceIDs  []string `json:"service_ids" validate:"required,min=2"`
}

// ConversionDraft converts a single-carrier service into a consortium by
// cloning it for each additional carrier. The consortium name is mandatory in
// this mode; the base service name is only ever a placeholder suggestion.
type ConversionDraft struct {
	Name          string            `json:"name" validate:"required"`
	Description   string            `json:"description,omitempty"`
	BaseServiceID string            `json:"base_service_id" validate:"required"`
	Carriers      []CarrierSelector `json:"carriers" validate:"required,min=1,dive"`
}

// CarrierSelector identifies one additional carrier to clone the base
// service for.
type CarrierSelector struct {
	CarrierID   string `json:"carrier_id" validate:"required"`
	CarrierName string `json:"carrier_name" validate:"required"`
}

// CloneOutcome reports the result of cloning the base service for one
// additional carrier. Succeeded clones are ordinary services and are never
// rolled back when a later carrier fails.
type CloneOutcome struct {
	CarrierID   string `json:"carrier_id"`
	CarrierName string `json:"carrier_name"`
	ServiceID   string `json:"service_id,omitempty"`
	Succeeded   bool   `json:"succeeded"`
	Error       string `json:"error,omitempty"`
}

// ConversionResult is what a convert-to-consortium attempt produced: the
// per-carrier outcomes and, when every clone succeeded, a draft ready to
// save. On partial failure the caller decides whether to retry the save with
// a reduced carrier set.
type ConversionResult struct {
	Outcomes []CloneOutcome   `json:"outcomes"`
	Draft    *ConsortiumDraft `json:"draft,omitempty"`
}

// Failed lists the carriers whose clone did not succeed.
func (r *ConversionResult) Failed() []CloneOutcome {
	var failed []CloneOutcome
	for _, o := range r.Outcomes {
		if !o.Succeeded {
			failed = append(failed, o)
		}
	}
	return failed
}

// Succeeded lists the carriers whose clone was created.
func (r *ConversionResult) Succeeded() []CloneOutcome {
	var ok []CloneOutcome
	for _, o := range r.Outcomes {
		if o.Succeeded {
			ok = append(ok, o)
		}
	}
	return ok
}
