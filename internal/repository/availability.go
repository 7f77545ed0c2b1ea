package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

const availabilityColumns = `
	id,
	organization_id,
	resource_id,
	starts_at,
	ends_at,
	kind,
	reason,
	status,
	recurrence_frequency,
	recurrence_weekdays,
	recurrence_until,
	created_at,
	version
`

// weekdayMask 第 n 位表示 time.Weekday(n)
func weekdayMask(days []time.Weekday) int16 {
	var mask int16
	for _, d := range days {
		mask |= 1 << uint(d)
	}
	return mask
}

func weekdaysOf(mask int16) []time.Weekday {
	days := make([]time.Weekday, 0)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if mask&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	return days
}

func recurrenceArgs(rec *domain.Recurrence) (sql.NullString, int16, sql.NullTime) {
	if rec == nil {
		return sql.NullString{}, 0, sql.NullTime{}
	}
	y, m, d := rec.Until.Date()
	until := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return sql.NullString{String: string(rec.Frequency), Valid: true}, weekdayMask(rec.Weekdays), nullTime(until)
}

func scanAvailabilityEntry(scanner interface{ Scan(...any) error }) (*domain.AvailabilityEntry, error) {
	var (
		e         domain.AvailabilityEntry
		frequency sql.NullString
		weekdays  int16
		until     sql.NullTime
	)

	dst := []any{
		&e.ID,
		&e.OrganizationID,
		&e.ResourceID,
		&e.Start,
		&e.End,
		&e.Kind,
		&e.Reason,
		&e.Status,
		&frequency,
		&weekdays,
		&until,
		&e.CreatedAt,
		&e.Version,
	}
	if err := scanner.Scan(dst...); err != nil {
		return nil, err
	}

	if frequency.Valid {
		e.Recurrence = &domain.Recurrence{
			Frequency: domain.RecurrenceFrequency(frequency.String),
			Weekdays:  weekdaysOf(weekdays),
			Until:     until.Time,
		}
	}
	return &e, nil
}

func (r *Repository) GetAvailabilityEntry(ctx context.Context, orgID int64, id int64) (*domain.AvailabilityEntry, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `SELECT ` + availabilityColumns + ` FROM availability_entries WHERE organization_id = $1 AND id = $2`

	e, err := scanAvailabilityEntry(r.dbpool.QueryRowContext(ctx, query, orgID, id))
	if err != nil {
		return nil, translate(err, "availability entry", id)
	}
	return e, nil
}

// ListAvailabilityEntries 返回可能与窗口相交的记录，重复记录的展开由调用方完成
func (r *Repository) ListAvailabilityEntries(ctx context.Context, orgID int64, filter scheduler.AvailabilityFilter) ([]*domain.AvailabilityEntry, error) {
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
	if !filter.IncludeRejected {
		conditions = append(conditions, "status <> 'rejected'")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() {
		args = append(args, filter.To, filter.From)
		to, from := len(args)-1, len(args)
		// 重复记录的截止日按日期比较，多返回一天由展开逻辑过滤
		conditions = append(conditions, fmt.Sprintf(`starts_at < $%d AND (
			ends_at > $%d
			OR (recurrence_frequency IS NOT NULL AND recurrence_until + 1 >= (($%d::timestamptz - (ends_at - starts_at)) AT TIME ZONE 'UTC')::date)
		)`, to, from, from))
	}

	query := `SELECT ` + availabilityColumns + ` FROM availability_entries WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY id`

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.AvailabilityEntry, 0)
	for rows.Next() {
		e, err := scanAvailabilityEntry(rows)
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

func (r *Repository) CreateAvailabilityEntry(ctx context.Context, entry *domain.AvailabilityEntry) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	frequency, weekdays, until := recurrenceArgs(entry.Recurrence)

	query := `
		INSERT INTO availability_entries (
			organization_id, resource_id, starts_at, ends_at, kind, reason, status,
			recurrence_frequency, recurrence_weekdays, recurrence_until
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, version
	`
	args := []any{
		entry.OrganizationID,
		entry.ResourceID,
		entry.Start,
		entry.End,
		entry.Kind,
		entry.Reason,
		entry.Status,
		frequency,
		weekdays,
		until,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt, &entry.Version); err != nil {
		return translate(err, "availability entry", 0)
	}
	return nil
}

func (r *Repository) UpdateAvailabilityEntry(ctx context.Context, entry *domain.AvailabilityEntry) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	frequency, weekdays, until := recurrenceArgs(entry.Recurrence)

	query := `
		UPDATE availability_entries
		SET starts_at = $1, ends_at = $2, kind = $3, reason = $4, status = $5,
			recurrence_frequency = $6, recurrence_weekdays = $7, recurrence_until = $8,
			version = version + 1
		WHERE id = $9 AND organization_id = $10 AND version = $11
		RETURNING version
	`
	args := []any{
		entry.Start,
		entry.End,
		entry.Kind,
		entry.Reason,
		entry.Status,
		frequency,
		weekdays,
		until,
		entry.ID,
		entry.OrganizationID,
		entry.Version,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&entry.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scheduler.ErrVersionConflict
		}
		return translate(err, "availability entry", entry.ID)
	}
	return nil
}
