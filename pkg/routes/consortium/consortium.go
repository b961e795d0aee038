package consortium

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/harborline/keel/internal/repositories/consortium"
	"github.com/harborline/keel/pkg/consolidation"
	ctxmiddleware "github.com/harborline/keel/pkg/context"
	"github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

var validate = validator.New()

// Register registers consortium routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.POST("/groups", CreateFromGroups)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
	g.GET("/:id/draft", Draft)
	g.GET("/:id/available-services", AvailableServices)
	g.POST("/:id/clear-review", ClearReview)
}

// List returns the tenant's consortiums
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "consortium_handler.List")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*consortium.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := repo.List(ctx, tenantID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list consortiums")
	}

	return c.JSON(http.StatusOK, models.ConsortiumListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// Create builds a consortium from explicitly chosen services and saves it.
// Any combination of names and carriers is allowed in this mode.
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "consortium_handler.Create")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.ManualMixDraft
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, engine, err := ectoinject.GetContext[*consolidation.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get engine")
	}

	draft, err := engine.BuildManualMix(ctx, tenantID, req)
	if err != nil {
		if errors.IsValidation(err) {
			return err
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to build consortium")
	}

	return save(c, ctx, engine, tenantID, draft, http.StatusCreated)
}

// CreateFromGroups builds a consortium from services selected within
// discovery groups. All selections must share one normalized name.
func CreateFromGroups(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "consortium_handler.CreateFromGroups")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.GroupDiscoveryDraft
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, engine, err := ectoinject.GetContext[*consolidation.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get engine")
	}

	draft, err := engine.BuildFromGroups(ctx, tenantID, req)
	if err != nil {
		if errors.IsValidation(err) {
			return err
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to build consortium")
	}

	return save(c, ctx, engine, tenantID, draft, http.StatusCreated)
}

// Get returns a single consortium with its derived aggregates
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "consortium_handler.Get")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	result, engine, err := load(c, ctx, tenantID)
	if err != nil {
		return err
	}

	aggregates, err := engine.AggregatesFor(ctx, tenantID, result)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to compute aggregates")
	}

	return c.JSON(http.StatusOK, models.ConsortiumResponse{
		Consortium: *result,
		Aggregates: aggregates,
	})
}

// Update saves an edited draft over an existing consortium. The body is the
// draft shape returned by the draft endpoint, with member destination
// toggles applied.
func Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "consortium_handler.Update")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var draft models.ConsortiumDraft
	if err := c.Bind(&draft); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	draft.ID = c.Param("id")

	ctx, engine, err := ectoinject.GetContext[*consolidation.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get engine")
	}

	return save(c, ctx, engine, tenantID, &draft, http.StatusOK)
}

// Delete removes a consortium. Its member services are untouched.
func Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "consortium_handler.Delete")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	result, engine, err := load(c, ctx, tenantID)
	if err != nil {
		return err
	}

	if err := engine.Delete(ctx, tenantID, result.ID); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete consortium")
	}

	return c.NoContent(http.StatusNoContent)
}

// Draft rebuilds an editable draft from a stored consortium, restoring each
// member's destination toggles
func Draft(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "consortium_handler.Draft")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	result, engine, err := load(c, ctx, tenantID)
	if err != nil {
		return err
	}

	draft, err := engine.DraftFor(ctx, tenantID, result)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to build draft")
	}

	return c.JSON(http.StatusOK, draft)
}

// AvailableServices returns the services a consortium under edit could
// still add, same-name carrier candidates first
func AvailableServices(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "consortium_handler.AvailableServices")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	result, engine, err := load(c, ctx, tenantID)
	if err != nil {
		return err
	}

	available, err := engine.AvailableServices(ctx, tenantID, result)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list available services")
	}

	return c.JSON(http.StatusOK, available)
}

// ClearReview resets the review flag after a human has resolved the
// conflicting destinations
func ClearReview(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "consortium_handler.ClearReview")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, engine, err := ectoinject.GetContext[*consolidation.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get engine")
	}

	result, err := engine.ClearReview(ctx, tenantID, c.Param("id"))
	if err != nil {
		if errors.IsValidation(err) {
			return err
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear review flag")
	}

	return c.JSON(http.StatusOK, result)
}

// load fetches the consortium named in the path plus the engine, turning a
// missing record into a 404.
func load(c echo.Context, ctx context.Context, tenantID string) (*models.Consortium, *consolidation.Engine, error) {
	ctx, repo, err := ectoinject.GetContext[*consortium.Repository](ctx)
	if err != nil {
		return nil, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	ctx, engine, err := ectoinject.GetContext[*consolidation.Engine](ctx)
	if err != nil {
		return nil, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get engine")
	}

	result, err := repo.GetByID(ctx, tenantID, c.Param("id"))
	if err != nil {
		return nil, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get consortium")
	}
	if result == nil {
		return nil, nil, httperror.NewHTTPError(http.StatusNotFound, "consortium not found")
	}

	return result, engine, nil
}

// save persists a draft through the engine and responds with the saved
// consortium and its aggregates.
func save(c echo.Context, ctx context.Context, engine *consolidation.Engine, tenantID string, draft *models.ConsortiumDraft, status int) error {
	saved, err := engine.Save(ctx, tenantID, draft)
	if err != nil {
		if errors.IsValidation(err) {
			return err
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save consortium")
	}

	aggregates, err := engine.AggregatesFor(ctx, tenantID, saved)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to compute aggregates")
	}

	return c.JSON(status, models.ConsortiumResponse{
		Consortium: *saved,
		Aggregates: aggregates,
	})
}
