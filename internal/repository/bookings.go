package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

const bookingColumns = `
	id,
	organization_id,
	resource_id,
	scheduled_start,
	scheduled_end,
	status,
	postal_code,
	address,
	notes,
	created_at,
	version
`

func scanBooking(scanner interface{ Scan(...any) error }) (*domain.Booking, error) {
	var b domain.Booking

	dst := []any{
		&b.ID,
		&b.OrganizationID,
		&b.ResourceID,
		&b.ScheduledStart,
		&b.ScheduledEnd,
		&b.Status,
		&b.PostalCode,
		&b.Address,
		&b.Notes,
		&b.CreatedAt,
		&b.Version,
	}
	if err := scanner.Scan(dst...); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) GetBooking(ctx context.Context, orgID int64, id int64) (*domain.Booking, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE organization_id = $1 AND id = $2`

	b, err := scanBooking(r.dbpool.QueryRowContext(ctx, query, orgID, id))
	if err != nil {
		return nil, translate(err, "booking", id)
	}
	return b, nil
}

func (r *Repository) ListBookings(ctx context.Context, orgID int64, filter scheduler.BookingFilter) ([]*domain.Booking, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	conditions := []string{"organization_id = $1"}
	args := []any{orgID}

	if filter.ResourceID != 0 {
		args = append(args, filter.ResourceID)
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if filter.ExcludeID != 0 {
		args = append(args, filter.ExcludeID)
		conditions = append(conditions, fmt.Sprintf("id <> $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "status NOT IN ('cancelled', 'rescheduled')")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() {
		// 半开区间相交：start < to AND end > from
		args = append(args, filter.To, filter.From)
		conditions = append(conditions, fmt.Sprintf("scheduled_start < $%d AND scheduled_end > $%d", len(args)-1, len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY scheduled_start, id`

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *Repository) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO bookings (organization_id, resource_id, scheduled_start, scheduled_end, status, postal_code, address, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, version
	`
	args := []any{
		booking.OrganizationID,
		booking.ResourceID,
		booking.ScheduledStart,
		booking.ScheduledEnd,
		booking.Status,
		booking.PostalCode,
		booking.Address,
		booking.Notes,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&booking.ID, &booking.CreatedAt, &booking.Version); err != nil {
		return translate(err, "booking", 0)
	}
	return nil
}

// UpdateBooking 使用乐观锁，版本不一致时返回 ErrVersionConflict
func (r *Repository) UpdateBooking(ctx context.Context, booking *domain.Booking) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		UPDATE bookings
		SET scheduled_start = $1, scheduled_end = $2, status = $3, postal_code = $4, address = $5, notes = $6, version = version + 1
		WHERE id = $7 AND organization_id = $8 AND version = $9
		RETURNING version
	`
	args := []any{
		booking.ScheduledStart,
		booking.ScheduledEnd,
		booking.Status,
		booking.PostalCode,
		booking.Address,
		booking.Notes,
		booking.ID,
		booking.OrganizationID,
		booking.Version,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&booking.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scheduler.ErrVersionConflict
		}
		return translate(err, "booking", booking.ID)
	}
	return nil
}
