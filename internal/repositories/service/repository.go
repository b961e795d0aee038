package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/harborline/keel/pkg/database"
	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

// ServiceRepository defines the interface for carrier service operations
type ServiceRepository interface {
	Create(ctx context.Context, tenantID string, req models.CreateServiceRequest) (*models.Service, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.Service, error)
	List(ctx context.Context, tenantID string, filter models.ServiceFilter) ([]models.Service, error)
	Update(ctx context.Context, tenantID string, id string, req models.CreateServiceRequest) (*models.Service, error)
	SetActive(ctx context.Context, tenantID string, id string, active bool) error
	Delete(ctx context.Context, tenantID string, id string) error
}

// Repository implements ServiceRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new service repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "services"
const destinationsTable = "service_destinations"

type serviceRow struct {
	ID          string                   `db:"id"`
	TenantID    string                   `db:"tenant_id"`
	Name        string                   `db:"name"`
	CarrierID   string                   `db:"carrier_id"`
	CarrierName string                   `db:"carrier_name"`
	Description string                   `db:"description"`
	Active      bool                     `db:"active"`
	Vessels     database.JSONB[[]string] `db:"vessels"`
	CreatedAt   time.Time                `db:"created_at"`
	UpdatedAt   time.Time                `db:"updated_at"`
	DeletedAt   *time.Time               `db:"deleted_at"`
}

func (row serviceRow) toModel() models.Service {
	return models.Service{
		ID:          row.ID,
		TenantID:    row.TenantID,
		Name:        row.Name,
		CarrierID:   row.CarrierID,
		CarrierName: row.CarrierName,
		Description: row.Description,
		Active:      row.Active,
		Vessels:     row.Vessels.GetValue(),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		DeletedAt:   row.DeletedAt,
	}
}

// Create creates a new service with its rotation in one transaction
func (r *Repository) Create(ctx context.Context, tenantID string, req models.CreateServiceRequest) (*models.Service, error) {
	ctx, span := tracing.StartSpan(ctx, "ServiceRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "name", "carrier_id", "carrier_name", "description", "active", "vessels", "created_at", "updated_at")
	sb.Values(id, tenantID, req.Name, req.CarrierID, req.CarrierName, req.Description, req.Active, database.JSONB[[]string]{Data: req.Vessels}, now, now)

	query, args := sb.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create service")
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	if err := insertDestinations(ctx, tx, id, req.Destinations); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert service destinations")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":         id,
		"tenant_id":  tenantID,
		"carrier_id": req.CarrierID,
	}).Info("created service")

	return r.GetByID(ctx, tenantID, id)
}

func insertDestinations(ctx context.Context, tx database.Tx, serviceID string, destinations []models.DestinationInput) error {
	if len(destinations) == 0 {
		return nil
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto(destinationsTable)
	sb.Cols("id", "service_id", "port_code", "port_name", "region", "position")
	for i, d := range destinations {
		position := d.Position
		if position == 0 {
			position = i
		}
		sb.Values(uuid.New().String(), serviceID, d.PortCode, d.PortName, d.Region, position)
	}

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert destinations: %w", err)
	}
	return nil
}

// GetByID gets a service by ID with its rotation
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.Service, error) {
	ctx, span := tracing.StartSpan(ctx, "ServiceRepository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "tenant_id", "name", "carrier_id", "carrier_name", "description", "active", "vessels", "created_at", "updated_at", "deleted_at")
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var row serviceRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get service by ID")
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	svc := row.toModel()
	destinations, err := r.loadDestinations(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	svc.Destinations = destinations[id]

	return &svc, nil
}

// List lists services for a tenant, optionally filtered to active only
func (r *Repository) List(ctx context.Context, tenantID string, filter models.ServiceFilter) ([]models.Service, error) {
	ctx, span := tracing.StartSpan(ctx, "ServiceRepository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "tenant_id", "name", "carrier_id", "carrier_name", "description", "active", "vessels", "created_at", "updated_at", "deleted_at")
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	if filter.Active != nil {
		sb.Where(sb.Equal("active", *filter.Active))
	}
	sb.OrderBy("name ASC", "carrier_name ASC")

	query, args := sb.Build()

	var rows []serviceRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list services")
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	destinations, err := r.loadDestinations(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.Service, 0, len(rows))
	for _, row := range rows {
		svc := row.toModel()
		svc.Destinations = destinations[row.ID]
		items = append(items, svc)
	}

	return items, nil
}

func (r *Repository) loadDestinations(ctx context.Context, serviceIDs []string) (map[string][]models.Destination, error) {
	sb := database.NewSelectBuilder()
	sb.Select("id", "service_id", "port_code", "port_name", "region", "position")
	sb.From(destinationsTable)
	sb.Where(sb.In("service_id", sqlbuilder.Flatten(serviceIDs)...))
	sb.OrderBy("service_id ASC", "position ASC")

	query, args := sb.Build()

	var rows []models.Destination
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to load service destinations")
		return nil, fmt.Errorf("failed to load destinations: %w", err)
	}

	byService := make(map[string][]models.Destination, len(serviceIDs))
	for _, row := range rows {
		byService[row.ServiceID] = append(byService[row.ServiceID], row)
	}
	return byService, nil
}

// Update replaces the service header and its rotation
func (r *Repository) Update(ctx context.Context, tenantID string, id string, req models.CreateServiceRequest) (*models.Service, error) {
	ctx, span := tracing.StartSpan(ctx, "ServiceRepository.Update")
	defer span.End()

	existing, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ub := database.NewUpdateBuilder()
	ub.Update(tableName)
	ub.Set(
		ub.Assign("name", req.Name),
		ub.Assign("carrier_id", req.CarrierID),
		ub.Assign("carrier_name", req.CarrierName),
		ub.Assign("description", req.Description),
		ub.Assign("active", req.Active),
		ub.Assign("vessels", database.JSONB[[]string]{Data: req.Vessels}),
		ub.Assign("updated_at", time.Now()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update service")
		return nil, fmt.Errorf("failed to update service: %w", err)
	}

	// Rotation is replaced wholesale
	db := database.NewDeleteBuilder()
	db.DeleteFrom(destinationsTable)
	db.Where(db.Equal("service_id", id))
	query, args = db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to clear service destinations")
		return nil, fmt.Errorf("failed to clear destinations: %w", err)
	}

	if err := insertDestinations(ctx, tx, id, req.Destinations); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert service destinations")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}).Info("updated service")

	return r.GetByID(ctx, tenantID, id)
}

// SetActive toggles a service's active flag
func (r *Repository) SetActive(ctx context.Context, tenantID string, id string, active bool) error {
	ctx, span := tracing.StartSpan(ctx, "ServiceRepository.SetActive")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(tableName)
	ub.Set(
		ub.Assign("active", active),
		ub.Assign("updated_at", time.Now()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to set service active flag")
		return fmt.Errorf("failed to set active: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"active":        active,
		"rows_affected": rowsAffected,
	}).Info("set service active flag")

	return nil
}

// Delete soft deletes a service
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "ServiceRepository.Delete")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(tableName)
	ub.Set(ub.Assign("deleted_at", time.Now()))
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete service")
		return fmt.Errorf("failed to delete service: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("deleted service")

	return nil
}
