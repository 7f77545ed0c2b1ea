package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

func (r *Repository) FindActiveTerritoriesByPostalCode(ctx context.Context, orgID int64, postalCode string) ([]*domain.Territory, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT
			t.id,
			t.organization_id,
			t.name,
			t.is_active,
			t.created_at,
			t.version,
			pc.postal_code
		FROM territories t
		LEFT JOIN territory_postal_codes pc ON t.id = pc.territory_id
		WHERE t.organization_id = $1
			AND t.is_active
			AND t.id IN (SELECT territory_id FROM territory_postal_codes WHERE postal_code = $2)
		ORDER BY t.id, pc.postal_code
	`

	rows, err := r.dbpool.QueryContext(ctx, query, orgID, postalCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	territories := make([]*domain.Territory, 0)
	territoriesMap := make(map[int64]*domain.Territory)

	for rows.Next() {
		var row struct {
			ID             int64
			OrganizationID int64
			Name           string
			IsActive       bool
			CreatedAt      time.Time
			Version        int32
			PostalCode     sql.NullString
		}

		dst := []any{
			&row.ID,
			&row.OrganizationID,
			&row.Name,
			&row.IsActive,
			&row.CreatedAt,
			&row.Version,
			&row.PostalCode,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		territory, exists := territoriesMap[row.ID]
		if !exists {
			territory = &domain.Territory{
				ID:             row.ID,
				OrganizationID: row.OrganizationID,
				Name:           row.Name,
				IsActive:       row.IsActive,
				PostalCodes:    make([]string, 0),
				CreatedAt:      row.CreatedAt,
				Version:        row.Version,
			}
			territoriesMap[row.ID] = territory
			territories = append(territories, territory)
		}

		if row.PostalCode.Valid {
			territory.PostalCodes = append(territory.PostalCodes, row.PostalCode.String)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return territories, nil
}

// CreateTerritory 供初始化数据使用
func (r *Repository) CreateTerritory(ctx context.Context, territory *domain.Territory) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO territories (organization_id, name, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, version
	`
	if err := tx.QueryRowContext(ctx, query, territory.OrganizationID, territory.Name, territory.IsActive).Scan(&territory.ID, &territory.CreatedAt, &territory.Version); err != nil {
		return err
	}

	query = `
		INSERT INTO territory_postal_codes (territory_id, postal_code)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	for _, code := range territory.PostalCodes {
		if _, err := tx.ExecContext(ctx, query, territory.ID, code); err != nil {
			return err
		}
	}

	return tx.Commit()
}
