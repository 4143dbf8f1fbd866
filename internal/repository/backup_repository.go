package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// BackupRepository stores backup technician redirects.
type BackupRepository interface {
	Create(ctx context.Context, backup *domain.BackupAssignment) error
	ActiveBackupFor(ctx context.Context, technicianID string, at time.Time) (*domain.BackupAssignment, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.BackupAssignment, error)
	Deactivate(ctx context.Context, id string) error
}

type backupRepository struct {
	pool *pgxpool.Pool
}

// NewBackupRepository builds the repository.
func NewBackupRepository(pool *pgxpool.Pool) BackupRepository {
	return &backupRepository{pool: pool}
}

const backupColumns = `id, original_technician_id, backup_technician_id, start_date, end_date, is_active`

func (r *backupRepository) Create(ctx context.Context, backup *domain.BackupAssignment) error {
	if backup.EndDate.Before(backup.StartDate) {
		return errors.New("backup end date precedes start date")
	}
	const query = `
        INSERT INTO backup_technicians (original_technician_id, backup_technician_id, start_date, end_date, is_active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		backup.OriginalTechnicianID,
		backup.BackupTechnicianID,
		backup.StartDate,
		backup.EndDate,
		backup.Active,
	).Scan(&backup.ID)
}

// ActiveBackupFor returns the most recently started redirect covering at,
// or nil when none applies.
func (r *backupRepository) ActiveBackupFor(ctx context.Context, technicianID string, at time.Time) (*domain.BackupAssignment, error) {
	query := `SELECT ` + backupColumns + `
        FROM backup_technicians
        WHERE original_technician_id=$1 AND is_active
          AND start_date <= $2 AND end_date >= $2
        ORDER BY start_date DESC
        LIMIT 1`
	backup, err := scanBackup(r.pool.QueryRow(ctx, query, technicianID, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return backup, err
}

func (r *backupRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.BackupAssignment, error) {
	query := `SELECT ` + backupColumns + `
        FROM backup_technicians
        WHERE is_active AND end_date < $1
        ORDER BY end_date ASC`
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BackupAssignment
	for rows.Next() {
		backup, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *backup)
	}
	return result, rows.Err()
}

func (r *backupRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE backup_technicians SET is_active=FALSE WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanBackup(row pgx.Row) (*domain.BackupAssignment, error) {
	var backup domain.BackupAssignment
	if err := row.Scan(
		&backup.ID,
		&backup.OriginalTechnicianID,
		&backup.BackupTechnicianID,
		&backup.StartDate,
		&backup.EndDate,
		&backup.Active,
	); err != nil {
		return nil, err
	}
	return &backup, nil
}
