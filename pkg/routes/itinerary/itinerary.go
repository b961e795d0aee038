package itinerary

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/harborline/keel/internal/repositories/consortium"
	"github.com/harborline/keel/internal/repositories/itinerary"
	"github.com/harborline/keel/internal/repositories/service"
	ctxmiddleware "github.com/harborline/keel/pkg/context"
	"github.com/harborline/keel/pkg/dates"
	"github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
	"github.com/harborline/keel/pkg/voyage"
)

var validate = validator.New()

// Register registers itinerary routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
	g.POST("/:id/escalas", AddEscala)
	g.PUT("/:id/escalas/:escala_id", UpdateEscala)
	g.DELETE("/:id/escalas/:escala_id", RemoveEscala)
}

// List returns the tenant's itineraries, most recent departures first
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "itinerary_handler.List")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*itinerary.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, err := repo.List(ctx, tenantID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list itineraries")
	}

	return c.JSON(http.StatusOK, models.ItineraryListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// Create schedules a new sailing for a consortium or a single service,
// seeding escalas from the consolidated destination set or the service
// rotation
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "itinerary_handler.Create")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.CreateItineraryRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if (req.ConsortiumID == "") == (req.ServiceID == "") {
		return httperror.NewHTTPError(http.StatusBadRequest, "exactly one of consortium_id or service_id is required")
	}

	ctx, svc, err := ectoinject.GetContext[*voyage.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get voyage service")
	}

	var saved *models.Itinerary
	if req.ConsortiumID != "" {
		ctx, consortiums, err := ectoinject.GetContext[*consortium.Repository](ctx)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
		}

		owner, err := consortiums.GetByID(ctx, tenantID, req.ConsortiumID)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get consortium")
		}
		if owner == nil {
			return httperror.NewHTTPError(http.StatusNotFound, "consortium not found")
		}

		saved, err = svc.ScheduleForConsortium(ctx, tenantID, owner, req)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to schedule itinerary")
		}
	} else {
		ctx, services, err := ectoinject.GetContext[*service.Repository](ctx)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
		}

		owner, err := services.GetByID(ctx, tenantID, req.ServiceID)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get service")
		}
		if owner == nil {
			return httperror.NewHTTPError(http.StatusNotFound, "service not found")
		}

		saved, err = svc.ScheduleForService(ctx, tenantID, owner, req)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to schedule itinerary")
		}
	}

	return c.JSON(http.StatusCreated, saved)
}

// Get returns a single itinerary with its ordered escalas
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "itinerary_handler.Get")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*itinerary.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get itinerary")
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "itinerary not found")
	}

	return c.JSON(http.StatusOK, result)
}

// Update mutates a sailing. Derived fields follow synchronously: a new ETD
// recomputes the week number and every transit figure; escalas, when
// present, replace the stored collection wholesale.
func Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "itinerary_handler.Update")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")

	var req models.UpdateItineraryRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*voyage.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get voyage service")
	}

	editor, err := svc.Edit(ctx, tenantID, id)
	if err != nil {
		if errors.IsValidation(err) {
			return httperror.NewHTTPError(http.StatusNotFound, "itinerary not found")
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to load itinerary")
	}

	if req.Vessel != nil {
		editor.SetVessel(*req.Vessel)
	}
	if req.VoyageCode != nil {
		editor.SetVoyageCode(*req.VoyageCode)
	}
	if req.POL != nil {
		editor.SetPOL(*req.POL)
	}
	if req.ETD != nil {
		editor.SetETD(dates.ParseCalendarDatePtr(*req.ETD))
	}
	if req.Escalas != nil {
		if err := editor.ReplaceEscalas(req.Escalas); err != nil {
			return err
		}
	}

	saved, err := svc.Save(ctx, tenantID, editor)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save itinerary")
	}

	return c.JSON(http.StatusOK, saved)
}

// Delete removes a sailing. The operation is irreversible and requires
// confirm=true as an explicit acknowledgement.
func Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "itinerary_handler.Delete")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")

	if c.QueryParam("confirm") != "true" {
		return httperror.NewHTTPError(http.StatusBadRequest, "deletion requires confirm=true")
	}

	ctx, repo, err := ectoinject.GetContext[*itinerary.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get itinerary")
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "itinerary not found")
	}

	ctx, svc, err := ectoinject.GetContext[*voyage.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get voyage service")
	}

	if err := svc.Delete(ctx, tenantID, id); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete itinerary")
	}

	return c.NoContent(http.StatusNoContent)
}

// AddEscala appends a port call after the current last one
func AddEscala(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "itinerary_handler.AddEscala")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")

	var req models.EscalaInput
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*voyage.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get voyage service")
	}

	editor, err := svc.Edit(ctx, tenantID, id)
	if err != nil {
		if errors.IsValidation(err) {
			return httperror.NewHTTPError(http.StatusNotFound, "itinerary not found")
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to load itinerary")
	}

	escala, err := editor.AddEscala(req.PortCode, req.PortName, req.Region)
	if err != nil {
		return err
	}
	if req.ETA != "" {
		if err := editor.SetEscalaETA(escala.ID, dates.ParseCalendarDatePtr(req.ETA)); err != nil {
			return err
		}
	}

	saved, err := svc.Save(ctx, tenantID, editor)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save itinerary")
	}

	return c.JSON(http.StatusCreated, saved)
}

// UpdateEscala rewrites one port call's port, region and arrival estimate
func UpdateEscala(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "itinerary_handler.UpdateEscala")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")
	escalaID := c.Param("escala_id")

	var req models.EscalaInput
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*voyage.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get voyage service")
	}

	editor, err := svc.Edit(ctx, tenantID, id)
	if err != nil {
		if errors.IsValidation(err) {
			return httperror.NewHTTPError(http.StatusNotFound, "itinerary not found")
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to load itinerary")
	}

	if err := editor.SetEscalaPort(escalaID, req.PortCode, req.PortName); err != nil {
		return err
	}
	if err := editor.SetEscalaRegion(escalaID, req.Region); err != nil {
		return err
	}
	if err := editor.SetEscalaETA(escalaID, dates.ParseCalendarDatePtr(req.ETA)); err != nil {
		return err
	}

	saved, err := svc.Save(ctx, tenantID, editor)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save itinerary")
	}

	return c.JSON(http.StatusOK, saved)
}

// RemoveEscala drops a port call; the save closes any position gaps
func RemoveEscala(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "itinerary_handler.RemoveEscala")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	id := c.Param("id")
	escalaID := c.Param("escala_id")

	ctx, svc, err := ectoinject.GetContext[*voyage.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get voyage service")
	}

	editor, err := svc.Edit(ctx, tenantID, id)
	if err != nil {
		if errors.IsValidation(err) {
			return httperror.NewHTTPError(http.StatusNotFound, "itinerary not found")
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to load itinerary")
	}

	if err := editor.RemoveEscala(escalaID); err != nil {
		return err
	}

	saved, err := svc.Save(ctx, tenantID, editor)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save itinerary")
	}

	return c.JSON(http.StatusOK, saved)
}
