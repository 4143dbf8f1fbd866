package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// TechnicianRepository exposes technician rosters and live workload.
type TechnicianRepository interface {
	GetTechnician(ctx context.Context, id string) (*domain.Technician, error)
	ActiveTechnicians(ctx context.Context, supportGroupID string) ([]domain.Technician, error)
	Workload(ctx context.Context, technicianID string) (domain.TechnicianWorkload, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

const technicianColumns = `u.id, u.name, u.email, u.department_id, (t.is_active AND u.is_active), t.created_at`

func (r *technicianRepository) GetTechnician(ctx context.Context, id string) (*domain.Technician, error) {
	query := `SELECT ` + technicianColumns + `
        FROM technicians t JOIN users u ON u.id = t.user_id
        WHERE t.user_id=$1`
	return scanTechnician(r.pool.QueryRow(ctx, query, id))
}

// ActiveTechnicians lists the group's active members in a stable order so
// tie breaking over the roster is reproducible.
func (r *technicianRepository) ActiveTechnicians(ctx context.Context, supportGroupID string) ([]domain.Technician, error) {
	query := `SELECT ` + technicianColumns + `
        FROM support_group_members m
        JOIN technicians t ON t.user_id = m.technician_id
        JOIN users u ON u.id = t.user_id
        WHERE m.support_group_id=$1 AND t.is_active AND u.is_active
        ORDER BY u.name ASC, u.id ASC`
	rows, err := r.pool.Query(ctx, query, supportGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		tech, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tech)
	}
	return result, rows.Err()
}

func (r *technicianRepository) Workload(ctx context.Context, technicianID string) (domain.TechnicianWorkload, error) {
	const query = `
        SELECT COUNT(*) FILTER (WHERE status = ANY($2)),
               MAX((form_data->>'assignedDate')::timestamptz)
        FROM tickets
        WHERE form_data->>'assignedTechnicianId'=$1`
	workload := domain.TechnicianWorkload{TechnicianID: technicianID}
	var lastAssigned *time.Time
	if err := r.pool.QueryRow(ctx, query, technicianID, statusNames(domain.ActiveStatuses)).Scan(
		&workload.ActiveTickets,
		&lastAssigned,
	); err != nil {
		return domain.TechnicianWorkload{}, err
	}
	workload.LastAssignedAt = lastAssigned
	return workload, nil
}

func (r *technicianRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE technicians SET is_active=$1 WHERE user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTechnician(row pgx.Row) (*domain.Technician, error) {
	var tech domain.Technician
	if err := row.Scan(
		&tech.ID,
		&tech.Name,
		&tech.Email,
		&tech.DepartmentID,
		&tech.Active,
		&tech.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &tech, nil
}
