package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/harborline/keel/pkg/models"
	"github.com/harborline/keel/pkg/tracing"
)

// Projector maintains the route-network projection: a Consortium node per
// consolidated service grouping, a Port node per unique port code, and one
// CALLS_AT edge per active consolidated destination.
type Projector struct {
	client *Client
	logger ectologger.Logger
}

// NewProjector creates a new route-network projector
func NewProjector(client *Client, logger ectologger.Logger) *Projector {
	return &Projector{
		client: client,
		logger: logger,
	}
}

// ProjectConsortium replaces the consortium's node and its CALLS_AT edges
// with the current consolidated destination set.
func (p *Projector) ProjectConsortium(ctx context.Context, consortium *models.Consortium) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectConsortium")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"consortium_id": consortium.ID,
		"tenant_id":     consortium.TenantID,
	})

	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MERGE (c:Consortium {id: $id, tenant_id: $tenant_id})
			SET c.name = $name, c.requires_review = $requires_review, c.members = $members
			WITH c
			OPTIONAL MATCH (c)-[r:CALLS_AT]->()
			DELETE r
		`, map[string]any{
			"id":              consortium.ID,
			"tenant_id":       consortium.TenantID,
			"name":            consortium.Name,
			"requires_review": consortium.RequiresReview,
			"members":         len(consortium.Members),
		})
		if err != nil {
			return nil, err
		}
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}

		for _, d := range consortium.Destinations {
			result, err := tx.Run(ctx, `
				MATCH (c:Consortium {id: $id, tenant_id: $tenant_id})
				MERGE (p:Port {code: $code, tenant_id: $tenant_id})
				SET p.name = $name, p.region = $region
				MERGE (c)-[r:CALLS_AT]->(p)
				SET r.position = $position, r.source_service_id = $source_service_id
			`, map[string]any{
				"id":                consortium.ID,
				"tenant_id":         consortium.TenantID,
				"code":              d.PortCode,
				"name":              d.PortName,
				"region":            string(d.Region),
				"position":          d.Position,
				"source_service_id": d.SourceServiceID,
			})
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})

	if err != nil {
		log.WithError(err).Error("Failed to project consortium into graph")
		return fmt.Errorf("failed to project consortium: %w", err)
	}

	log.Debug("Projected consortium into graph")
	return nil
}

// RemoveConsortium detaches and deletes the consortium node
func (p *Projector) RemoveConsortium(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.RemoveConsortium")
	defer span.End()

	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (c:Consortium {id: $id, tenant_id: $tenant_id})
			DETACH DELETE c
		`, map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to remove consortium from graph")
		return fmt.Errorf("failed to remove consortium: %w", err)
	}

	return nil
}

// ConsortiumsCallingAt returns the IDs of consortiums with a CALLS_AT edge
// to the given port code.
func (p *Projector) ConsortiumsCallingAt(ctx context.Context, tenantID string, portCode string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ConsortiumsCallingAt")
	defer span.End()

	records, err := p.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (c:Consortium {tenant_id: $tenant_id})-[:CALLS_AT]->(p:Port {code: $code, tenant_id: $tenant_id})
			RETURN c.id AS id
			ORDER BY c.name
		`, map[string]any{
			"tenant_id": tenantID,
			"code":      portCode,
		})
		if err != nil {
			return nil, err
		}

		var ids []string
		for result.Next(ctx) {
			if id, ok := result.Record().Get("id"); ok {
				if s, ok := id.(string); ok {
					ids = append(ids, s)
				}
			}
		}
		return ids, result.Err()
	})

	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to query consortiums by port")
		return nil, fmt.Errorf("failed to query consortiums by port: %w", err)
	}

	ids, _ := records.([]string)
	return ids, nil
}
