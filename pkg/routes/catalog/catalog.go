package catalog

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	catalogrepo "github.com/harborline/keel/internal/repositories/catalog"
	"github.com/harborline/keel/pkg/catalog"
	ctxmiddleware "github.com/harborline/keel/pkg/context"
	"github.com/harborline/keel/pkg/graph"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

var validate = validator.New()

// Register registers catalog reference routes
func Register(g *echo.Group) {
	g.GET("/vessels", Vessels)
	g.GET("/ports", Ports)
	g.POST("/ports", UpsertPorts)
	g.GET("/ports/:code/consortiums", PortConsortiums)
}

// Vessels returns the tenant's known vessel names, deduplicated across the
// active fleet pools
func Vessels(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "catalog_handler.Vessels")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, cat, err := ectoinject.GetContext[*catalog.Catalog](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get catalog")
	}

	vessels, err := cat.Vessels(ctx, tenantID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list vessels")
	}

	return c.JSON(http.StatusOK, models.VesselCatalogResponse{Vessels: vessels})
}

// Ports returns the tenant's port reference list
func Ports(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "catalog_handler.Ports")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*catalogrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	ports, err := repo.ListPorts(ctx, tenantID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ports")
	}

	return c.JSON(http.StatusOK, models.PortCatalogResponse{Ports: ports})
}

// PortConsortiums answers "which consortiums call at this port" from the
// graph projection. The projector is only registered when the graph store
// is enabled.
func PortConsortiums(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "catalog_handler.PortConsortiums")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, projector, err := ectoinject.GetContext[*graph.Projector](ctx)
	if err != nil || projector == nil {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "route network projection is not enabled")
	}

	ids, err := projector.ConsortiumsCallingAt(ctx, tenantID, c.Param("code"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to query route network")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"port_code":      c.Param("code"),
		"consortium_ids": ids,
	})
}

// UpsertPorts loads or refreshes the tenant's port reference list
func UpsertPorts(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "catalog_handler.UpsertPorts")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.UpsertPortsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*catalogrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	if err := repo.UpsertPorts(ctx, tenantID, req.Ports); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert ports")
	}

	ports, err := repo.ListPorts(ctx, tenantID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ports")
	}

	return c.JSON(http.StatusOK, models.PortCatalogResponse{Ports: ports})
}
