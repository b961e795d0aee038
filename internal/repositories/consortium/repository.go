package consortium

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

// ConsortiumRepository defines the interface for consortium operations
type ConsortiumRepository interface {
	Create(ctx context.Context, tenantID string, consortium *models.Consortium) (*models.Consortium, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.Consortium, error)
	List(ctx context.Context, tenantID string) ([]models.Consortium, error)
	Update(ctx context.Context, tenantID string, id string, consortium *models.Consortium) (*models.Consortium, error)
	Delete(ctx context.Context, tenantID string, id string) error
}

// Repository implements ConsortiumRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new consortium repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "consortiums"
const membersTable = "consortium_members"
const destinationsTable = "consortium_destinations"

type consortiumRow struct {
	ID             string     `db:"id"`
	TenantID       string     `db:"tenant_id"`
	Name           string     `db:"name"`
	Description    string     `db:"description"`
	RequiresReview bool       `db:"requires_review"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at"`
}

type memberRow struct {
	ConsortiumID string `db:"consortium_id"`
	ServiceID    string `db:"service_id"`
	Position     int    `db:"position"`
}

type destinationRow struct {
	ConsortiumID    string        `db:"consortium_id"`
	PortCode        string        `db:"port_code"`
	PortName        string        `db:"port_name"`
	Region          models.Region `db:"region"`
	Position        int           `db:"position"`
	SourceServiceID string        `db:"source_service_id"`
}

func (row consortiumRow) toModel() models.Consortium {
	return models.Consortium{
		ID:             row.ID,
		TenantID:       row.TenantID,
		Name:           row.Name,
		Description:    row.Description,
		RequiresReview: row.RequiresReview,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
		DeletedAt:      row.DeletedAt,
	}
}

// Create creates a consortium with its members and consolidated destination
// set in one transaction
func (r *Repository) Create(ctx context.Context, tenantID string, consortium *models.Consortium) (*models.Consortium, error) {
	ctx, span := tracing.StartSpan(ctx, "ConsortiumRepository.Create")
	defer span.End()

	now := time.Now()
	id := consortium.ID
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
	sb.Cols("id", "tenant_id", "name", "description", "requires_review", "created_at", "updated_at")
	sb.Values(id, tenantID, consortium.Name, consortium.Description, consortium.RequiresReview, now, now)

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create consortium")
		return nil, fmt.Errorf("failed to create consortium: %w", err)
	}

	if err := insertChildren(ctx, tx, id, consortium); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert consortium children")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"members":   len(consortium.Members),
	}).Info("created consortium")

	return r.GetByID(ctx, tenantID, id)
}

func insertChildren(ctx context.Context, tx database.Tx, id string, consortium *models.Consortium) error {
	if len(consortium.Members) > 0 {
		sb := database.NewInsertBuilder()
		sb.InsertInto(membersTable)
		sb.Cols("consortium_id", "service_id", "position")
		for _, m := range consortium.Members {
			sb.Values(id, m.ServiceID, m.Position)
		}
		query, args := sb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert members: %w", err)
		}
	}

	if len(consortium.Destinations) > 0 {
		sb := database.NewInsertBuilder()
		sb.InsertInto(destinationsTable)
		sb.Cols("id", "consortium_id", "port_code", "port_name", "region", "position", "source_service_id")
		for _, d := range consortium.Destinations {
			sb.Values(uuid.New().String(), id, d.PortCode, d.PortName, d.Region, d.Position, d.SourceServiceID)
		}
		query, args := sb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert destinations: %w", err)
		}
	}

	return nil
}

func deleteChildren(ctx context.Context, tx database.Tx, id string) error {
	for _, table := range []string{membersTable, destinationsTable} {
		db := database.NewDeleteBuilder()
		db.DeleteFrom(table)
		db.Where(db.Equal("consortium_id", id))
		query, args := db.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// GetByID gets a consortium by ID with members and destinations
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.Consortium, error) {
	ctx, span := tracing.StartSpan(ctx, "ConsortiumRepository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "tenant_id", "name", "description", "requires_review", "created_at", "updated_at", "deleted_at")
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var row consortiumRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get consortium by ID")
		return nil, fmt.Errorf("failed to get consortium: %w", err)
	}

	consortium := row.toModel()
	if err := r.loadChildren(ctx, []string{id}, map[string]*models.Consortium{id: &consortium}); err != nil {
		return nil, err
	}

	return &consortium, nil
}

// List lists consortiums for a tenant with members and destinations
func (r *Repository) List(ctx context.Context, tenantID string) ([]models.Consortium, error) {
	ctx, span := tracing.StartSpan(ctx, "ConsortiumRepository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "tenant_id", "name", "description", "requires_review", "created_at", "updated_at", "deleted_at")
	sb.From(tableName)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("name ASC")

	query, args := sb.Build()

	var rows []consortiumRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list consortiums")
		return nil, fmt.Errorf("failed to list consortiums: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	items := make([]models.Consortium, 0, len(rows))
	byID := make(map[string]*models.Consortium, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
		ids = append(ids, row.ID)
	}
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	if err := r.loadChildren(ctx, ids, byID); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *Repository) loadChildren(ctx context.Context, ids []string, byID map[string]*models.Consortium) error {
	sb := database.NewSelectBuilder()
	sb.Select("consortium_id", "service_id", "position")
	sb.From(membersTable)
	sb.Where(sb.In("consortium_id", sqlbuilder.Flatten(ids)...))
	sb.OrderBy("consortium_id ASC", "position ASC")

	query, args := sb.Build()

	var members []memberRow
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to load consortium members")
		return fmt.Errorf("failed to load members: %w", err)
	}
	for _, m := range members {
		c := byID[m.ConsortiumID]
		c.Members = append(c.Members, models.ConsortiumMember{ServiceID: m.ServiceID, Position: m.Position})
	}

	sb = database.NewSelectBuilder()
	sb.Select("consortium_id", "port_code", "port_name", "region", "position", "source_service_id")
	sb.From(destinationsTable)
	sb.Where(sb.In("consortium_id", sqlbuilder.Flatten(ids)...))
	sb.OrderBy("consortium_id ASC", "position ASC")

	query, args = sb.Build()

	var destinations []destinationRow
	if err := r.db.SelectContext(ctx, &destinations, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to load consortium destinations")
		return fmt.Errorf("failed to load destinations: %w", err)
	}
	for _, d := range destinations {
		c := byID[d.ConsortiumID]
		c.Destinations = append(c.Destinations, models.ConsolidatedDestination{
			PortCode:        d.PortCode,
			PortName:        d.PortName,
			Region:          d.Region,
			Position:        d.Position,
			SourceServiceID: d.SourceServiceID,
		})
	}

	return nil
}

// Update replaces the consortium header, members and destinations
func (r *Repository) Update(ctx context.Context, tenantID string, id string, consortium *models.Consortium) (*models.Consortium, error) {
	ctx, span := tracing.StartSpan(ctx, "ConsortiumRepository.Update")
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
		ub.Assign("name", consortium.Name),
		ub.Assign("description", consortium.Description),
		ub.Assign("requires_review", consortium.RequiresReview),
		ub.Assign("updated_at", time.Now()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update consortium")
		return nil, fmt.Errorf("failed to update consortium: %w", err)
	}

	if err := deleteChildren(ctx, tx, id); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to clear consortium children")
		return nil, err
	}
	if err := insertChildren(ctx, tx, id, consortium); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert consortium children")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"members":   len(consortium.Members),
	}).Info("updated consortium")

	return r.GetByID(ctx, tenantID, id)
}

// Delete soft deletes a consortium. Member and destination rows stay in
// place; they are unreachable once the header is gone.
func (r *Repository) Delete(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "ConsortiumRepository.Delete")
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete consortium")
		return fmt.Errorf("failed to delete consortium: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"rows_affected": rowsAffected,
	}).Info("deleted consortium")

	return nil
}
