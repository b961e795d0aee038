package service

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/harborline/keel/internal/repositories/service"
	"github.com/harborline/keel/pkg/catalog"
	"github.com/harborline/keel/pkg/consolidation"
	ctxmiddleware "github.com/harborline/keel/pkg/context"
	"github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

var validate = validator.New()

// Register registers service routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/groups", Groups)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.PUT("/:id/activate", SetActive)
	g.POST("/:id/convert", Convert)
	g.DELETE("/:id", Delete)
}

// List returns the tenant's services, optionally filtered by active state
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "service_handler.List")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	filter := models.ServiceFilter{}
	if raw := c.QueryParam("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "active must be a boolean")
		}
		filter.Active = &active
	}

	ctx, repo, err := ectoinject.GetContext[*service.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := repo.List(ctx, tenantID, filter)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list services")
	}

	return c.JSON(http.StatusOK, models.ServiceListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// Create creates a new carrier service
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "service_handler.Create")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.CreateServiceRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req.Vessels = catalog.NormalizeVessels(req.Vessels)

	ctx, repo, err := ectoinject.GetContext[*service.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Create(ctx, tenantID, req)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create service")
	}

	if ctx, cat, cacheErr := ectoinject.GetContext[*catalog.Catalog](ctx); cacheErr == nil {
		cat.InvalidateGroups(ctx, tenantID)
	}

	return c.JSON(http.StatusCreated, result)
}

// Groups returns the discovery groups: active services sharing a normalized
// name across at least two carriers
func Groups(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "service_handler.Groups")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, cat, err := ectoinject.GetContext[*catalog.Catalog](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get catalog")
	}

	groups, err := cat.DiscoverGroups(ctx, tenantID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to discover groups")
	}

	return c.JSON(http.StatusOK, models.ServiceGroupListResponse{Groups: groups})
}

// Get returns a single service by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "service_handler.Get")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*service.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get service")
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "service not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Update replaces a service's header, vessel pool and rotation
func Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "service_handler.Update")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")

	var req models.CreateServiceRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req.Vessels = catalog.NormalizeVessels(req.Vessels)

	ctx, repo, err := ectoinject.GetContext[*service.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get service")
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "service not found")
	}

	result, err := repo.Update(ctx, tenantID, id, req)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update service")
	}

	if ctx, cat, cacheErr := ectoinject.GetContext[*catalog.Catalog](ctx); cacheErr == nil {
		cat.InvalidateGroups(ctx, tenantID)
	}

	return c.JSON(http.StatusOK, result)
}

// SetActive toggles a service in or out of the active catalog
func SetActive(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "service_handler.SetActive")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")

	var req models.SetServiceActiveRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, repo, err := ectoinject.GetContext[*service.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get service")
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "service not found")
	}

	if err := repo.SetActive(ctx, tenantID, id, req.Active); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update service")
	}

	result, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get service")
	}

	if ctx, cat, cacheErr := ectoinject.GetContext[*catalog.Catalog](ctx); cacheErr == nil {
		cat.InvalidateGroups(ctx, tenantID)
	}

	return c.JSON(http.StatusOK, result)
}

// Convert clones a single-carrier service for each additional carrier and
// returns a consortium draft ready to save. Clones run sequentially; a
// mid-sequence failure returns 409 with the per-carrier outcomes and leaves
// the succeeded clones in place.
func Convert(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "service_handler.Convert")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.ConversionDraft
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.BaseServiceID = c.Param("id")

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, engine, err := ectoinject.GetContext[*consolidation.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get engine")
	}

	result, err := engine.Convert(ctx, tenantID, req)
	if err != nil && !groupsStale(err) {
		if errors.IsValidation(err) {
			return err
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to convert service")
	}

	// Clones are new active services; cached discovery groups are stale now.
	// A partial failure leaves its succeeded clones in place, so the cache is
	// invalidated before the conflict is reported.
	if groupsStale(err) {
		if ctx, cat, cacheErr := ectoinject.GetContext[*catalog.Catalog](ctx); cacheErr == nil {
			cat.InvalidateGroups(ctx, tenantID)
		}
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// groupsStale reports whether a convert attempt changed the active catalog.
// A nil error means every clone landed; a partial failure means at least the
// clones before the failing carrier did.
func groupsStale(err error) bool {
	return err == nil || errors.IsPartialFailure(err)
}

// Delete soft-deletes a service
func Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "service_handler.Delete")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*service.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get service")
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "service not found")
	}

	if err := repo.Delete(ctx, tenantID, id); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete service")
	}

	if ctx, cat, cacheErr := ectoinject.GetContext[*catalog.Catalog](ctx); cacheErr == nil {
		cat.InvalidateGroups(ctx, tenantID)
	}

	return c.NoContent(http.StatusNoContent)
}
