package models

import "time"

// Consortium is a commercially named grouping of one or more carrier
// services with a consolidated, deduplicated destination set.
type Consortium struct {
	ID             string                    `json:"id" db:"id"`
	TenantID       string                    `json:"tenant_id" db:"tenant_id"`
	Name           string                    `json:"name" db:"name"`
	Description    string                    `json:"description,omitempty" db:"description"`
	RequiresReview bool                      `json:"requires_review" db:"requires_review"`
	Members        []ConsortiumMember        `json:"members"`
	Destinations   []ConsolidatedDestination `json:"destinations"`
	CreatedAt      time.Time                 `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time                `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ConsortiumMember links a consortium to one of its member services.
type ConsortiumMember struct {
	ServiceID string `json:"service_id" db:"service_id"`
	Position  int    `json:"position" db:"position"`
}

// ConsolidatedDestination is one entry of the consortium's active destination
// set. Destinations are unique by port code: the same physical port declared
// by several member services appears exactly once, keeping the region and
// ordering of the first member that declared it.
type ConsolidatedDestination struct {
	PortCode        string `json:"port_code" db:"port_code"`
	PortName        string `json:"port_name" db:"port_name"`
	Region          Region `json:"region" db:"region"`
	Position        int    `json:"position" db:"position"`
	SourceServiceID string `json:"source_service_id" db:"source_service_id"`
}

// ConsortiumAggregates are the derived display counts for a consortium.
// Vessels are deduplicated by normalized name across all member pools;
// destinations by port code across the active set.
type ConsortiumAggregates struct {
	UniqueVessels      int `json:"unique_vessels"`
	UniqueDestinations int `json:"unique_destinations"`
}

// ConsortiumResponse is the API response for a single consortium.
type ConsortiumResponse struct {
	Consortium
	Aggregates ConsortiumAggregates `json:"aggregates"`
}

// ConsortiumListResponse is the API response for listing consortiums.
type ConsortiumListResponse struct {
	Items      []Consortium `json:"items"`
	TotalCount int          `json:"total_count"`
}

// AvailableServices partitions the services a consortium under edit could
// still add. SameName lists active services sharing a normalized name with an
// existing member from a carrier not yet represented, surfaced first as the
// most likely next action; Other is every remaining active non-member.
type AvailableServices struct {
	SameName []Service `json:"same_name"`
	Other    []Service `json:"other"`
}
