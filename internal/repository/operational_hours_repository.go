package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// OperationalHoursRepository loads the working-time configuration and holidays.
type OperationalHoursRepository interface {
	// Active returns the active configuration, or nil when none is stored.
	Active(ctx context.Context) (*domain.OperationalHours, error)
	// Holidays returns active holiday dates as YYYY-MM-DD keys.
	Holidays(ctx context.Context) ([]string, error)
}

type operationalHoursRepository struct {
	pool *pgxpool.Pool
}

// NewOperationalHoursRepository builds the repository.
func NewOperationalHoursRepository(pool *pgxpool.Pool) OperationalHoursRepository {
	return &operationalHoursRepository{pool: pool}
}

func (r *operationalHoursRepository) Active(ctx context.Context) (*domain.OperationalHours, error) {
	const query = `
        SELECT id, working_time_type, standard_start_time, standard_end_time,
               standard_break_start, standard_break_end, working_days
        FROM operational_hours
        WHERE is_active
        ORDER BY updated_at DESC
        LIMIT 1`
	var hours domain.OperationalHours
	err := r.pool.QueryRow(ctx, query).Scan(
		&hours.ID,
		&hours.Mode,
		&hours.StandardStartTime,
		&hours.StandardEndTime,
		&hours.StandardBreakStart,
		&hours.StandardBreakEnd,
		&hours.WorkingDays,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hours, nil
}

func (r *operationalHoursRepository) Holidays(ctx context.Context) ([]string, error) {
	const query = `SELECT date FROM holidays WHERE is_active ORDER BY date ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		result = append(result, date.Format(domain.HolidayDateLayout))
	}
	return result, rows.Err()
}
