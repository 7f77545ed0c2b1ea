package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

const resourceColumns = `
	r.id,
	r.organization_id,
	r.code,
	r.name,
	r.email,
	r.kind,
	r.employment,
	r.is_bookable,
	r.max_appointments_per_day,
	r.max_hours_per_week,
	r.timezone,
	r.primary_territory_id,
	r.created_at,
	r.version
`

func scanResource(scanner interface{ Scan(...any) error }) (*domain.Resource, error) {
	var (
		res     domain.Resource
		primary sql.NullInt64
	)

	dst := []any{
		&res.ID,
		&res.OrganizationID,
		&res.Code,
		&res.Name,
		&res.Email,
		&res.Kind,
		&res.Employment,
		&res.IsBookable,
		&res.MaxAppointmentsPerDay,
		&res.MaxHoursPerWeek,
		&res.Timezone,
		&primary,
		&res.CreatedAt,
		&res.Version,
	}
	if err := scanner.Scan(dst...); err != nil {
		return nil, err
	}

	if primary.Valid {
		id := primary.Int64
		res.PrimaryTerritoryID = &id
	}
	res.TerritoryIDs = make([]int64, 0)
	res.EquipmentIDs = make([]int64, 0)
	return &res, nil
}

func (r *Repository) GetResource(ctx context.Context, orgID int64, id int64) (*domain.Resource, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `SELECT ` + resourceColumns + ` FROM resources r WHERE r.organization_id = $1 AND r.id = $2`

	res, err := scanResource(r.dbpool.QueryRowContext(ctx, query, orgID, id))
	if err != nil {
		return nil, translate(err, "resource", id)
	}

	if err := r.loadResourceLinks(ctx, map[int64]*domain.Resource{res.ID: res}); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Repository) ListResources(ctx context.Context, orgID int64, filter scheduler.ResourceFilter) ([]*domain.Resource, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	conditions := []string{"r.organization_id = $1"}
	args := []any{orgID}

	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("r.kind = $%d", len(args)))
	}
	if filter.Bookable != nil {
		args = append(args, *filter.Bookable)
		conditions = append(conditions, fmt.Sprintf("r.is_bookable = $%d", len(args)))
	}
	if len(filter.TerritoryIDs) > 0 {
		args = append(args, filter.TerritoryIDs)
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM resource_territories rt WHERE rt.resource_id = r.id AND rt.territory_id = ANY($%d))", len(args)))
	}

	query := `SELECT ` + resourceColumns + ` FROM resources r WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY r.id`

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]*domain.Resource, 0)
	resourcesMap := make(map[int64]*domain.Resource)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
		resourcesMap[res.ID] = res
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadResourceLinks(ctx, resourcesMap); err != nil {
		return nil, err
	}
	return resources, nil
}

// loadResourceLinks 一次查询补全资源服务的区域与配备的设备
func (r *Repository) loadResourceLinks(ctx context.Context, resources map[int64]*domain.Resource) error {
	if len(resources) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}

	query := `
		SELECT resource_id, 'territory', territory_id FROM resource_territories WHERE resource_id = ANY($1)
		UNION ALL
		SELECT resource_id, 'equipment', equipment_id FROM resource_equipment WHERE resource_id = ANY($1)
		ORDER BY 1, 2, 3
	`

	rows, err := r.dbpool.QueryContext(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			resourceID int64
			linkType   string
			linkID     int64
		)
		if err := rows.Scan(&resourceID, &linkType, &linkID); err != nil {
			return err
		}

		res := resources[resourceID]
		switch linkType {
		case "territory":
			res.TerritoryIDs = append(res.TerritoryIDs, linkID)
		case "equipment":
			res.EquipmentIDs = append(res.EquipmentIDs, linkID)
		}
	}

	return rows.Err()
}

// CreateResource 供初始化数据使用，同时写入服务区域与配备设备
func (r *Repository) CreateResource(ctx context.Context, res *domain.Resource) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var primary sql.NullInt64
	if res.PrimaryTerritoryID != nil {
		primary = sql.NullInt64{Int64: *res.PrimaryTerritoryID, Valid: true}
	}

	query := `
		INSERT INTO resources (
			organization_id, code, name, email, kind, employment, is_bookable,
			max_appointments_per_day, max_hours_per_week, timezone, primary_territory_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, version
	`
	args := []any{
		res.OrganizationID,
		res.Code,
		res.Name,
		res.Email,
		res.Kind,
		res.Employment,
		res.IsBookable,
		res.MaxAppointmentsPerDay,
		res.MaxHoursPerWeek,
		res.Timezone,
		primary,
	}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&res.ID, &res.CreatedAt, &res.Version); err != nil {
		return translate(err, "resource", 0)
	}

	for _, territoryID := range res.TerritoryIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO resource_territories (resource_id, territory_id) VALUES ($1, $2)`, res.ID, territoryID); err != nil {
			return err
		}
	}
	for _, equipmentID := range res.EquipmentIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO resource_equipment (resource_id, equipment_id) VALUES ($1, $2)`, res.ID, equipmentID); err != nil {
			return err
		}
	}

	return tx.Commit()
}
