package itinerary

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

// ItineraryRepository defines the interface for itinerary operations
type ItineraryRepository interface {
	Create(ctx context.Context, tenantID string, itinerary *models.Itinerary) (*models.Itinerary, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.Itinerary, error)
	List(ctx context.Context, tenantID string) ([]models.Itinerary, error)
	Update(ctx context.Context, tenantID string, id string, itinerary *models.Itinerary) (*models.Itinerary, error)
	Delete(ctx context.Context, tenantID string, id string) error
}

// Repository implements ItineraryRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new itinerary repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "itineraries"
const escalasTable = "itinerary_escalas"

type itineraryRow struct {
	ID           string     `db:"id"`
	TenantID     string     `db:"tenant_id"`
	ConsortiumID *string    `db:"consortium_id"`
	ServiceID    *string    `db:"service_id"`
	ServiceName  string     `db:"service_name"`
	CarrierName  *string    `db:"carrier_name"`
	Vessel       string     `db:"vessel"`
	VoyageCode   string     `db:"voyage_code"`
	POL          string     `db:"pol"`
	ETD          *time.Time `db:"etd"`
	Week         *int       `db:"week"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (row itineraryRow) toModel() models.Itinerary {
	return models.Itinerary{
		ID:           row.ID,
		TenantID:     row.TenantID,
		ConsortiumID: row.ConsortiumID,
		ServiceID:    row.ServiceID,
		ServiceName:  row.ServiceName,
		CarrierName:  row.CarrierName,
		Vessel:       row.Vessel,
		VoyageCode:   row.VoyageCode,
		POL:          row.POL,
		ETD:          row.ETD,
		Week:         row.Week,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		DeletedAt:    row.DeletedAt,
	}
}

// Create creates an itinerary with its escalas in one transaction
func (r *Repository) Create(ctx context.Context, tenantID string, itinerary *models.Itinerary) (*models.Itinerary, error) {
	ctx, span := tracing.StartSpan(ctx, "ItineraryRepository.Create")
	defer span.End()

	now := time.Now()
	id := itinerary.ID
	if id == "" {
		id = uuid.New().String()
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "tenant_id", "consortium_id", "service_id", "service_name", "carrier_name", "vessel", "voyage_code", "pol", "etd", "week", "created_at", "updated_at")
	sb.Values(id, tenantID, itinerary.ConsortiumID, itinerary.ServiceID, itinerary.ServiceName, itinerary.CarrierName, itinerary.Vessel, itinerary.VoyageCode, itinerary.POL, itinerary.ETD, itinerary.Week, now, now)

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create itinerary")
		return nil, fmt.Errorf("failed to create itinerary: %w", err)
	}

	if err := insertEscalas(ctx, tx, id, itinerary.Escalas); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert escalas")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"escalas":   len(itinerary.Escalas),
	}).Info("created itinerary")

	return r.GetByID(ctx, tenantID, id)
}

func insertEscalas(ctx context.Context, tx database.Tx, itineraryID string, escalas []models.Escala) error {
	if len(escalas) == 0 {
		return nil
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto(escalasTable)
	sb.Cols("id", "itinerary_id", "port_code", "port_name", "region", "eta", "transit_days", "position")
	for _, e := range escalas {
		escalaID := e.ID
		if escalaID == "" {
			escalaID = uuid.New().String()
		}
		sb.Values(escalaID, itineraryID, e.PortCode, e.PortName, e.Region, e.ETA, e.TransitDays, e.Position)
	}

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert escalas: %w", err)
	}
	return nil
}

// GetByID gets an itinerary by ID with its escalas
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.Itinerary, error) {
	ctx, span := tracing.StartSpan(ctx, "ItineraryRepository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "tenant_id", "consortium_id", "service_id", "service_name", "carrier_name", "vessel", "voyage_code", "pol", "etd", "week", "created_at", "updated_at", "deleted_at")
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var row itineraryRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get itinerary by ID")
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}

	itinerary := row.toModel()
	escalas, err := r.loadEscalas(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	itinerary.Escalas = escalas[id]

	return &itinerary, nil
}

// List lists itineraries for a tenant, most recent departures first
func (r *Repository) List(ctx context.Context, tenantID string) ([]models.Itinerary, error) {
	ctx, span := tracing.StartSpan(ctx, "ItineraryRepository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "tenant_id", "consortium_id", "service_id", "service_name", "carrier_name", "vessel", "voyage_code", "pol", "etd", "week", "created_at", "updated_at", "deleted_at")
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("etd DESC NULLS LAST", "created_at DESC")

	query, args := sb.Build()

	var rows []itineraryRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list itineraries")
		return nil, fmt.Errorf("failed to list itineraries: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	escalas, err := r.loadEscalas(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.Itinerary, 0, len(rows))
	for _, row := range rows {
		itinerary := row.toModel()
		itinerary.Escalas = escalas[row.ID]
		items = append(items, itinerary)
	}

	return items, nil
}

func (r *Repository) loadEscalas(ctx context.Context, itineraryIDs []string) (map[string][]models.Escala, error) {
	sb := database.NewSelectBuilder()
	sb.Select("id", "itinerary_id", "port_code", "port_name", "region", "eta", "transit_days", "position")
	sb.From(escalasTable)
	sb.Where(sb.In("itinerary_id", sqlbuilder.Flatten(itineraryIDs)...))
	sb.OrderBy("itinerary_id ASC", "position ASC")

	query, args := sb.Build()

	var rows []models.Escala
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to load escalas")
		return nil, fmt.Errorf("failed to load escalas: %w", err)
	}

	byItinerary := make(map[string][]models.Escala, len(itineraryIDs))
	for _, row := range rows {
		byItinerary[row.ItineraryID] = append(byItinerary[row.ItineraryID], row)
	}
	return byItinerary, nil
}

// Update replaces the itinerary header and the full escala collection
func (r *Repository) Update(ctx context.Context, tenantID string, id string, itinerary *models.Itinerary) (*models.Itinerary, error) {
	ctx, span := tracing.StartSpan(ctx, "ItineraryRepository.Update")
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
		ub.Assign("vessel", itinerary.Vessel),
		ub.Assign("voyage_code", itinerary.VoyageCode),
		ub.Assign("pol", itinerary.POL),
		ub.Assign("etd", itinerary.ETD),
		ub.Assign("week", itinerary.Week),
		ub.Assign("updated_at", time.Now()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update itinerary")
		return nil, fmt.Errorf("failed to update itinerary: %w", err)
	}

	// Escalas are replaced wholesale on every save
	db := database.NewDeleteBuilder()
	db.DeleteFrom(escalasTable)
	db.Where(db.Equal("itinerary_id", id))
	query, args = db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to clear escalas")
		return nil, fmt.Errorf("failed to clear escalas: %w", err)
	}

	if err := insertEscalas(ctx, tx, id, itinerary.Escalas); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert escalas")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"escalas":   len(itinerary.Escalas),
	}).Info("updated itinerary")

	return r.GetByID(ctx, tenantID, id)
}

// Delete soft deletes an itinerary
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "ItineraryRepository.Delete")
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete itinerary")
		return fmt.Errorf("failed to delete itinerary: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("deleted itinerary")

	return nil
}
