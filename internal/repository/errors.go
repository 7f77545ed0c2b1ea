package repository

import (
	"database/sql"
	"errors"

	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/jackc/pgx/v5/pgconn"
)

// translate 把数据库约束冲突映射为与进程内预检相同的业务错误，
// 并发竞争失败的调用方因此看到的错误与顺序调用一致
func translate(err error, entity string, id int64) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &scheduler.NotFoundError{Entity: entity, ID: id}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.ConstraintName {
		case "bookings_no_overlap":
			return scheduler.ErrBookingConflict
		case "equipment_assignments_open_key":
			return scheduler.ErrNotAvailable
		case "time_entries_open_key":
			return scheduler.ErrActiveEntryExists
		case "bookings_window_check", "availability_entries_window_check":
			return &scheduler.ValidationError{Field: "end", Message: "must be after start"}
		case "resources_organization_code_key":
			return &scheduler.ValidationError{Field: "code", Message: "is already in use"}
		case "skills_organization_code_key":
			return &scheduler.ValidationError{Field: "code", Message: "is already in use"}
		}
	}
	return err
}
