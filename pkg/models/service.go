package models

import "time"

// Region is the closed set of trade regions a port call can belong to.
type Region string

const (
	RegionAsia            Region = "ASIA"
	RegionEurope          Region = "EUROPE"
	RegionAmerica         Region = "AMERICA"
	RegionIndiaMiddleEast Region = "INDIA-MIDDLE_EAST"
)

// Valid reports whether the region is one of the recognized trade regions.
func (r Region) Valid() bool {
	switch r {
	case RegionAsia, RegionEurope, RegionAmerica, RegionIndiaMiddleEast:
		return true
	}
	return false
}

// Service is one carrier's named route definition: a vessel pool plus an
// ordered rotation of port calls.
type Service struct {
	ID           string        `json:"id" db:"id"`
	TenantID     string        `json:"tenant_id" db:"tenant_id"`
	Name         string        `json:"name" db:"name"`
	CarrierID    string        `json:"carrier_id" db:"carrier_id"`
	CarrierName  string        `json:"carrier_name" db:"carrier_name"`
	Description  string        `json:"description,omitempty" db:"description"`
	Active       bool          `json:"active" db:"active"`
	Vessels      []string      `json:"vessels"`
	Destinations []Destination `json:"destinations"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Destination is one port call in a service's rotation. Position is a dense
// 0..N-1 sequence used only for default display ordering; it is not
// authoritative once destinations are consolidated across services.
type Destination struct {
	ID        string `json:"id" db:"id"`
	ServiceID string `json:"service_id" db:"service_id"`
	PortCode  string `json:"port_code" db:"port_code"`
	PortName  string `json:"port_name" db:"port_name"`
	Region    Region `json:"region" db:"region"`
	Position  int    `json:"position" db:"position"`
}

// DestinationInput is a port call supplied by the caller.
type DestinationInput struct {
	PortCode string `json:"port_code" validate:"required"`
	PortName string `json:"port_name"`
	Region   Region `json:"region" validate:"required,oneof=ASIA EUROPE AMERICA INDIA-MIDDLE_EAST"`
	Position int    `json:"position" validate:"min=0"`
}

// CreateServiceRequest is the request body for creating a service.
type CreateServiceRequest struct {
	Name         string             `json:"name" validate:"required"`
	CarrierID    string             `json:"carrier_id" validate:"required"`
	CarrierName  string             `json:"carrier_name" validate:"required"`
	Description  string             `json:"description,omitempty"`
	Active       bool               `json:"active"`
	Vessels      []string           `json:"vessels"`
	Destinations []DestinationInput `json:"destinations" validate:"unique=PortCode,dive"`
}

// SetServiceActiveRequest toggles a service in or out of the active
// catalog.
type SetServiceActiveRequest struct {
	Active bool `json:"active"`
}

// ServiceFilter narrows a service listing.
type ServiceFilter struct {
	Active *bool `json:"active,omitempty"`
}

// ServiceListResponse is the API response for listing services.
type ServiceListResponse struct {
	Items      []Service `json:"items"`
	TotalCount int       `json:"total_count"`
}

// ServiceGroup is a set of active services that share a normalized name
// across different carriers, surfaced by discovery as one selectable unit.
type ServiceGroup struct {
	Name     string    `json:"name"`
	Services []Service `json:"services"`
}

// ServiceGroupListResponse is the API response for discovery groups.
type ServiceGroupListResponse struct {
	Groups []ServiceGroup `json:"groups"`
}
