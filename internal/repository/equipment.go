package repository

import (
	"context"
	"database/sql"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

const assignmentColumns = `
	id,
	organization_id,
	equipment_id,
	resource_id,
	assigned_at,
	condition_at_checkout,
	returned_at,
	condition_at_return,
	notes
`

func scanAssignment(scanner interface{ Scan(...any) error }) (*domain.EquipmentAssignment, error) {
	var (
		a                 domain.EquipmentAssignment
		returnedAt        sql.NullTime
		conditionAtReturn sql.NullString
	)

	dst := []any{
		&a.ID,
		&a.OrganizationID,
		&a.EquipmentID,
		&a.ResourceID,
		&a.AssignedAt,
		&a.ConditionAtCheckout,
		&returnedAt,
		&conditionAtReturn,
		&a.Notes,
	}
	if err := scanner.Scan(dst...); err != nil {
		return nil, err
	}

	a.ReturnedAt = timePtr(returnedAt)
	if conditionAtReturn.Valid {
		c := domain.EquipmentCondition(conditionAtReturn.String)
		a.ConditionAtReturn = &c
	}
	return &a, nil
}

func (r *Repository) GetEquipment(ctx context.Context, orgID int64, id int64) (*domain.Equipment, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT id, organization_id, name, serial_number, status, condition, created_at, version
		FROM equipment
		WHERE organization_id = $1 AND id = $2
	`

	var eq domain.Equipment
	dst := []any{
		&eq.ID,
		&eq.OrganizationID,
		&eq.Name,
		&eq.SerialNumber,
		&eq.Status,
		&eq.Condition,
		&eq.CreatedAt,
		&eq.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, orgID, id).Scan(dst...); err != nil {
		return nil, translate(err, "equipment", id)
	}
	return &eq, nil
}

func (r *Repository) GetEquipmentAssignment(ctx context.Context, orgID int64, id int64) (*domain.EquipmentAssignment, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `SELECT ` + assignmentColumns + ` FROM equipment_assignments WHERE organization_id = $1 AND id = $2`

	a, err := scanAssignment(r.dbpool.QueryRowContext(ctx, query, orgID, id))
	if err != nil {
		return nil, translate(err, "equipment assignment", id)
	}
	return a, nil
}

// ListEquipmentAssignments 按借出时间倒序返回
func (r *Repository) ListEquipmentAssignments(ctx context.Context, orgID int64, equipmentID int64, openOnly bool) ([]*domain.EquipmentAssignment, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT ` + assignmentColumns + `
		FROM equipment_assignments
		WHERE organization_id = $1 AND equipment_id = $2 AND (NOT $3 OR returned_at IS NULL)
		ORDER BY id DESC
	`

	rows, err := r.dbpool.QueryContext(ctx, query, orgID, equipmentID, openOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]*domain.EquipmentAssignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *Repository) CheckOutEquipment(ctx context.Context, assignment *domain.EquipmentAssignment) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 锁住设备行，避免与归还、报废并发
	var status domain.EquipmentStatus
	query := `SELECT status FROM equipment WHERE organization_id = $1 AND id = $2 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, query, assignment.OrganizationID, assignment.EquipmentID).Scan(&status); err != nil {
		return translate(err, "equipment", assignment.EquipmentID)
	}
	if status != domain.EquipmentAvailable {
		return scheduler.ErrNotAvailable
	}

	query = `
		INSERT INTO equipment_assignments (organization_id, equipment_id, resource_id, assigned_at, condition_at_checkout, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	args := []any{
		assignment.OrganizationID,
		assignment.EquipmentID,
		assignment.ResourceID,
		assignment.AssignedAt,
		assignment.ConditionAtCheckout,
		assignment.Notes,
	}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&assignment.ID); err != nil {
		return translate(err, "equipment assignment", 0)
	}

	query = `UPDATE equipment SET status = 'in_use', version = version + 1 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, assignment.EquipmentID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) CheckInEquipment(ctx context.Context, assignment *domain.EquipmentAssignment) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var conditionAtReturn sql.NullString
	if assignment.ConditionAtReturn != nil {
		conditionAtReturn = sql.NullString{String: string(*assignment.ConditionAtReturn), Valid: true}
	}

	query := `
		UPDATE equipment_assignments
		SET returned_at = $1, condition_at_return = $2, notes = $3
		WHERE id = $4 AND organization_id = $5 AND returned_at IS NULL
	`
	args := []any{
		nullTimePtr(assignment.ReturnedAt),
		conditionAtReturn,
		assignment.Notes,
		assignment.ID,
		assignment.OrganizationID,
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// 区分记录不存在与已经归还
		var exists bool
		query = `SELECT EXISTS (SELECT 1 FROM equipment_assignments WHERE id = $1 AND organization_id = $2)`
		if err := tx.QueryRowContext(ctx, query, assignment.ID, assignment.OrganizationID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return &scheduler.NotFoundError{Entity: "equipment assignment", ID: assignment.ID}
		}
		return scheduler.ErrAlreadyCheckedIn
	}

	query = `
		UPDATE equipment
		SET status = 'available', condition = COALESCE($1, condition), version = version + 1
		WHERE id = $2 AND status = 'in_use'
	`
	if _, err := tx.ExecContext(ctx, query, conditionAtReturn, assignment.EquipmentID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) RetireEquipment(ctx context.Context, orgID int64, equipmentID int64) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status domain.EquipmentStatus
	query := `SELECT status FROM equipment WHERE organization_id = $1 AND id = $2 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, query, orgID, equipmentID).Scan(&status); err != nil {
		return translate(err, "equipment", equipmentID)
	}

	var open bool
	query = `SELECT EXISTS (SELECT 1 FROM equipment_assignments WHERE equipment_id = $1 AND returned_at IS NULL)`
	if err := tx.QueryRowContext(ctx, query, equipmentID).Scan(&open); err != nil {
		return err
	}
	if open {
		return scheduler.ErrActiveAssignmentExists
	}

	query = `UPDATE equipment SET status = 'retired', version = version + 1 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, equipmentID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) CreateEquipment(ctx context.Context, eq *domain.Equipment) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO equipment (organization_id, name, serial_number, status, condition)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`
	args := []any{
		eq.OrganizationID,
		eq.Name,
		eq.SerialNumber,
		eq.Status,
		eq.Condition,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&eq.ID, &eq.CreatedAt, &eq.Version); err != nil {
		return err
	}
	return nil
}
