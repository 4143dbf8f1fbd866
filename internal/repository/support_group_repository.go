package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// SupportGroupRepository lists support groups and template routing.
type SupportGroupRepository interface {
	TemplateRoutes(ctx context.Context, templateID string) ([]domain.GroupRoute, error)
	ActiveSupportGroups(ctx context.Context) ([]domain.SupportGroup, error)
}

type supportGroupRepository struct {
	pool *pgxpool.Pool
}

// NewSupportGroupRepository constructs repository.
func NewSupportGroupRepository(pool *pgxpool.Pool) SupportGroupRepository {
	return &supportGroupRepository{pool: pool}
}

func (r *supportGroupRepository) TemplateRoutes(ctx context.Context, templateID string) ([]domain.GroupRoute, error) {
	const query = `
        SELECT tsg.support_group_id, tsg.load_balance_type, tsg.priority
        FROM template_support_groups tsg
        JOIN support_groups g ON g.id = tsg.support_group_id
        WHERE tsg.template_id=$1 AND tsg.is_active AND g.is_active
        ORDER BY tsg.priority ASC`
	rows, err := r.pool.Query(ctx, query, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GroupRoute
	for rows.Next() {
		var route domain.GroupRoute
		if err := rows.Scan(&route.SupportGroupID, &route.Strategy, &route.Priority); err != nil {
			return nil, err
		}
		result = append(result, route)
	}
	return result, rows.Err()
}

func (r *supportGroupRepository) ActiveSupportGroups(ctx context.Context) ([]domain.SupportGroup, error) {
	const query = `
        SELECT id, name, is_active
        FROM support_groups WHERE is_active
        ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupportGroup
	for rows.Next() {
		var group domain.SupportGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.IsActive); err != nil {
			return nil, err
		}
		result = append(result, group)
	}
	return result, rows.Err()
}
