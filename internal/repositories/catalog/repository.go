package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/harborline/keel/pkg/database"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

// CatalogRepository defines the interface for port reference data
type CatalogRepository interface {
	UpsertPorts(ctx context.Context, tenantID string, ports []models.PortCatalogEntry) error
	ListPorts(ctx context.Context, tenantID string) ([]models.PortCatalogEntry, error)
}

// Repository implements CatalogRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new catalog repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const portsTable = "ports"

// UpsertPorts inserts or refreshes the tenant's port reference entries.
// Codes are unique per tenant; a re-import overwrites the display name.
func (r *Repository) UpsertPorts(ctx context.Context, tenantID string, ports []models.PortCatalogEntry) error {
	ctx, span := tracing.StartSpan(ctx, "CatalogRepository.UpsertPorts")
	defer span.End()

	if len(ports) == 0 {
		return nil
	}

	now := time.Now()

	ib := database.NewInsertBuilder()
	ib = ib.InsertInto(portsTable)
	ib = ib.Cols("tenant_id", "code", "name", "updated_at")
	for _, p := range ports {
		ib = ib.Values(tenantID, p.Code, p.Name, now)
	}

	ub := ib.OnConflict("tenant_id", "code")
	ub.Set(
		ub.Assign("name", database.Excluded("name")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to upsert ports")
		return fmt.Errorf("failed to upsert ports: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"ports":     len(ports),
	}).Info("upserted port catalog")

	return nil
}

// ListPorts lists the tenant's port reference entries ordered by code
func (r *Repository) ListPorts(ctx context.Context, tenantID string) ([]models.PortCatalogEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "CatalogRepository.ListPorts")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("code", "name")
	sb.From(portsTable)
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("code ASC")

	query, args := sb.Build()

	var ports []models.PortCatalogEntry
	if err := r.db.SelectContext(ctx, &ports, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list ports")
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	return ports, nil
}
