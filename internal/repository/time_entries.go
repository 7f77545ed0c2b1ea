package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

const timeEntryColumns = `
	id,
	organization_id,
	resource_id,
	booking_id,
	entry_type,
	entry_date,
	start_time,
	end_time,
	break_minutes,
	duration_minutes,
	needs_review,
	created_at
`

func scanTimeEntry(scanner interface{ Scan(...any) error }) (*domain.TimeEntry, error) {
	var (
		e         domain.TimeEntry
		bookingID sql.NullInt64
		endTime   sql.NullTime
		duration  sql.NullInt32
	)

	dst := []any{
		&e.ID,
		&e.OrganizationID,
		&e.ResourceID,
		&bookingID,
		&e.EntryType,
		&e.EntryDate,
		&e.StartTime,
		&endTime,
		&e.BreakMinutes,
		&duration,
		&e.NeedsReview,
		&e.CreatedAt,
	}
	if err := scanner.Scan(dst...); err != nil {
		return nil, err
	}

	if bookingID.Valid {
		id := bookingID.Int64
		e.BookingID = &id
	}
	e.EndTime = timePtr(endTime)
	if duration.Valid {
		d := duration.Int32
		e.DurationMinutes = &d
	}
	return &e, nil
}

func (r *Repository) GetOpenTimeEntry(ctx context.Context, orgID int64, resourceID int64) (*domain.TimeEntry, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT ` + timeEntryColumns + `
		FROM time_entries
		WHERE organization_id = $1 AND resource_id = $2 AND end_time IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	e, err := scanTimeEntry(r.dbpool.QueryRowContext(ctx, query, orgID, resourceID))
	if err != nil {
		return nil, translate(err, "open time entry for resource", resourceID)
	}
	return e, nil
}

func (r *Repository) ListTimeEntries(ctx context.Context, orgID int64, filter scheduler.TimeEntryFilter) ([]*domain.TimeEntry, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	conditions := []string{"organization_id = $1"}
	args := []any{orgID}

	if filter.ResourceID != 0 {
		args = append(args, filter.ResourceID)
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("start_time < $%d", len(args)))
	}

	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY start_time, id`

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.TimeEntry, 0)
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *Repository) CreateTimeEntry(ctx context.Context, entry *domain.TimeEntry) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var bookingID sql.NullInt64
	if entry.BookingID != nil {
		bookingID = sql.NullInt64{Int64: *entry.BookingID, Valid: true}
	}

	query := `
		INSERT INTO time_entries (organization_id, resource_id, booking_id, entry_type, entry_date, start_time, break_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	args := []any{
		entry.OrganizationID,
		entry.ResourceID,
		bookingID,
		entry.EntryType,
		entry.EntryDate,
		entry.StartTime,
		entry.BreakMinutes,
		entry.CreatedAt,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&entry.ID); err != nil {
		return translate(err, "time entry", 0)
	}
	return nil
}

// CloseTimeEntry 只关闭仍处于打开状态的记录，并发的第二次关闭返回 ErrNoActiveEntry
func (r *Repository) CloseTimeEntry(ctx context.Context, entry *domain.TimeEntry) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var duration sql.NullInt32
	if entry.DurationMinutes != nil {
		duration = sql.NullInt32{Int32: *entry.DurationMinutes, Valid: true}
	}

	query := `
		UPDATE time_entries
		SET end_time = $1, break_minutes = $2, duration_minutes = $3, needs_review = $4
		WHERE id = $5 AND organization_id = $6 AND end_time IS NULL
	`
	args := []any{
		nullTimePtr(entry.EndTime),
		entry.BreakMinutes,
		duration,
		entry.NeedsReview,
		entry.ID,
		entry.OrganizationID,
	}

	result, err := r.dbpool.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return scheduler.ErrNoActiveEntry
	}
	return nil
}
