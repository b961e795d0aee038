package models

// PortCatalogEntry is one entry of the tenant's port reference list.
type PortCatalogEntry struct {
	Code string `json:"code" db:"code" validate:"required"`
	Name string `json:"name" db:"name"`
}

// UpsertPortsRequest loads or refreshes entries of the tenant's port
// reference list. Existing codes are updated in place.
type UpsertPortsRequest struct {
	Ports []PortCatalogEntry `json:"ports" validate:"required,min=1,dive"`
}

// VesselCatalogResponse lists the tenant's known vessel names.
type VesselCatalogResponse struct {
	Vessels []string `json:"vessels"`
}

// PortCatalogResponse lists the tenant's known ports.
type PortCatalogResponse struct {
	Ports []PortCatalogEntry `json:"ports"`
}
