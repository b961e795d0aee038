package tenant

import (
	"net/http"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/harborline/keel/pkg/database"
)

// Register registers tenant routes
func Register(g *echo.Group) {
	g.DELETE("/tenant/:tenant_id", deleteTenantData)
}

// deleteTenantData deletes all data for a specific tenant
// This is intended for testing purposes to clean up test data
func deleteTenantData(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "tenant_id is required",
		})
	}

	// Get database and logger from DI
	ctx, db, err := ectoinject.GetContext[database.DB](ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to get database",
		})
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{"tenant_id": tenantID}).Info("Deleting all data for tenant")
	}

	counts := make(map[string]int64)

	// Child rows carry no tenant column; scope them through their header.
	statements := []struct {
		table string
		query string
	}{
		{"itinerary_escalas", "DELETE FROM itinerary_escalas WHERE itinerary_id IN (SELECT id FROM itineraries WHERE tenant_id = $1)"},
		{"itineraries", "DELETE FROM itineraries WHERE tenant_id = $1"},
		{"consortium_destinations", "DELETE FROM consortium_destinations WHERE consortium_id IN (SELECT id FROM consortiums WHERE tenant_id = $1)"},
		{"consortium_members", "DELETE FROM consortium_members WHERE consortium_id IN (SELECT id FROM consortiums WHERE tenant_id = $1)"},
		{"consortiums", "DELETE FROM consortiums WHERE tenant_id = $1"},
		{"service_destinations", "DELETE FROM service_destinations WHERE service_id IN (SELECT id FROM services WHERE tenant_id = $1)"},
		{"services", "DELETE FROM services WHERE tenant_id = $1"},
		{"ports", "DELETE FROM ports WHERE tenant_id = $1"},
	}
	for _, stmt := range statements {
		result, err := db.ExecContext(ctx, stmt.query, tenantID)
		if err == nil {
			counts[stmt.table], _ = result.RowsAffected()
		}
	}

	if logger != nil {
		fields := map[string]any{"tenant_id": tenantID}
		for k, v := range counts {
			fields[k] = v
		}
		logger.WithContext(ctx).WithFields(fields).Info("Tenant data deleted")
	}

	response := map[string]interface{}{
		"message":   "tenant data deleted",
		"tenant_id": tenantID,
	}
	for k, v := range counts {
		response[k] = v
	}

	return c.JSON(http.StatusOK, response)
}
