package models

import "time"

// Itinerary is one concrete sailing of a service or consortium: a vessel, a
// voyage code, the port of loading and departure date, and the ordered list
// of escalas (port calls). CarrierName is only meaningful when the sailing is
// attributed to a single-carrier service; it is nil for a pure consortium.
type Itinerary struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	ConsortiumID *string    `json:"consortium_id,omitempty" db:"consortium_id"`
	ServiceID    *string    `json:"service_id,omitempty" db:"service_id"`
	ServiceName  string     `json:"service_name" db:"service_name"`
	CarrierName  *string    `json:"carrier_name,omitempty" db:"carrier_name"`
	Vessel       string     `json:"vessel" db:"vessel"`
	VoyageCode   string     `json:"voyage_code" db:"voyage_code"`
	POL          string     `json:"pol" db:"pol"`
	ETD          *time.Time `json:"etd,omitempty" db:"etd"`
	Week         *int       `json:"week,omitempty" db:"week"`
	Escalas      []Escala   `json:"escalas"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Escala is a single port call within an itinerary. TransitDays is derived:
// it is non-nil only when both the itinerary ETD and this escala's ETA are
// present and the arrival is not before the departure. Position is 1-based
// and dense; gaps left by removed escalas are closed on every save.
type Escala struct {
	ID          string     `json:"id" db:"id"`
	ItineraryID string     `json:"itinerary_id" db:"itinerary_id"`
	PortCode    string     `json:"port_code" db:"port_code"`
	PortName    *string    `json:"port_name,omitempty" db:"port_name"`
	Region      Region     `json:"region" db:"region"`
	ETA         *time.Time `json:"eta,omitempty" db:"eta"`
	TransitDays *int       `json:"transit_days,omitempty" db:"transit_days"`
	Position    int        `json:"position" db:"position"`
}

// CreateItineraryRequest schedules a new sailing for a consortium or a
// single service. Dates arrive as strings and are parsed tolerantly: a
// malformed ETD simply leaves the departure unset.
type CreateItineraryRequest struct {
	ConsortiumID string `json:"consortium_id,omitempty"`
	ServiceID    string `json:"service_id,omitempty"`
	Vessel       string `json:"vessel" validate:"required"`
	VoyageCode   string `json:"voyage_code"`
	POL          string `json:"pol" validate:"required"`
	ETD          string `json:"etd,omitempty"`
}

// UpdateItineraryRequest mutates an existing sailing. Escalas, when present,
// fully replace the stored collection.
type UpdateItineraryRequest struct {
	Vessel     *string       `json:"vessel,omitempty"`
	VoyageCode *string       `json:"voyage_code,omitempty"`
	POL        *string       `json:"pol,omitempty"`
	ETD        *string       `json:"etd,omitempty"`
	Escalas    []EscalaInput `json:"escalas,omitempty" validate:"omitempty,dive"`
}

// EscalaInput is one port call supplied by the caller.
type EscalaInput struct {
	ID       string `json:"id,omitempty"` // empty for a newly added escala
	PortCode string `json:"port_code" validate:"required"`
	PortName string `json:"port_name,omitempty"`
	Region   Region `json:"region" validate:"required,oneof=ASIA EUROPE AMERICA INDIA-MIDDLE_EAST"`
	ETA      string `json:"eta,omitempty"`
}

// ItineraryListResponse is the API response for listing itineraries.
type ItineraryListResponse struct {
	Items      []Itinerary `json:"items"`
	TotalCount int         `json:"total_count"`
}
