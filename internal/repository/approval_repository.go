package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// ApprovalRepository reads approvals awaiting a decision.
type ApprovalRepository interface {
	ListPending(ctx context.Context) ([]domain.Approval, error)
}

type approvalRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalRepository builds the repository.
func NewApprovalRepository(pool *pgxpool.Pool) ApprovalRepository {
	return &approvalRepository{pool: pool}
}

// ListPending only returns approvals at the ticket's current level, the
// lowest level that still has an undecided approval.
func (r *approvalRepository) ListPending(ctx context.Context) ([]domain.Approval, error) {
	const query = `
        SELECT a.id, a.ticket_id, t.subject, a.level,
               COALESCE(u.id::text, ''), COALESCE(u.name, ''), COALESCE(u.email, ''),
               a.status, a.created_at
        FROM approvals a
        JOIN tickets t ON t.id = a.ticket_id
        LEFT JOIN users u ON u.id = a.approver_id
        WHERE a.status=$1 AND t.status=$2
          AND a.level = (
              SELECT MIN(p.level) FROM approvals p
              WHERE p.ticket_id = a.ticket_id AND p.status=$1)
        ORDER BY a.created_at ASC`
	rows, err := r.pool.Query(ctx, query, string(domain.ApprovalPending), string(domain.TicketStatusForApproval))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Approval
	for rows.Next() {
		var approval domain.Approval
		if err := rows.Scan(
			&approval.ID,
			&approval.TicketID,
			&approval.TicketSubject,
			&approval.Level,
			&approval.ApproverID,
			&approval.ApproverName,
			&approval.ApproverEmail,
			&approval.Status,
			&approval.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, approval)
	}
	return result, rows.Err()
}
