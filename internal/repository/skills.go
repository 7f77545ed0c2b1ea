package repository

import (
	"context"
	"database/sql"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

// ListSkillAssignments 返回全部记录，包括已过期的证书，是否有效由调用方按日期判断
func (r *Repository) ListSkillAssignments(ctx context.Context, orgID int64, resourceIDs []int64) (map[int64][]*domain.SkillAssignment, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT
			sa.id,
			sa.resource_id,
			sa.skill_id,
			sa.proficiency_level,
			sa.certification_number,
			sa.certification_issuer,
			sa.certified_on,
			sa.expires_on,
			sa.created_at
		FROM skill_assignments sa
		INNER JOIN resources r ON sa.resource_id = r.id
		WHERE r.organization_id = $1 AND sa.resource_id = ANY($2)
		ORDER BY sa.resource_id, sa.skill_id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, orgID, resourceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make(map[int64][]*domain.SkillAssignment)
	for rows.Next() {
		var (
			sa          domain.SkillAssignment
			certifiedOn sql.NullTime
			expiresOn   sql.NullTime
		)

		dst := []any{
			&sa.ID,
			&sa.ResourceID,
			&sa.SkillID,
			&sa.ProficiencyLevel,
			&sa.CertificationNumber,
			&sa.CertificationIssuer,
			&certifiedOn,
			&expiresOn,
			&sa.CreatedAt,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		sa.CertifiedOn = timePtr(certifiedOn)
		sa.ExpiresOn = timePtr(expiresOn)
		assignments[sa.ResourceID] = append(assignments[sa.ResourceID], &sa)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *Repository) CreateSkill(ctx context.Context, skill *domain.Skill) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO skills (organization_id, code, name, is_certification)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.dbpool.QueryRowContext(ctx, query, skill.OrganizationID, skill.Code, skill.Name, skill.IsCertification).Scan(&skill.ID, &skill.CreatedAt); err != nil {
		return translate(err, "skill", 0)
	}
	return nil
}

func (r *Repository) CreateSkillAssignment(ctx context.Context, sa *domain.SkillAssignment) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO skill_assignments (
			resource_id, skill_id, proficiency_level,
			certification_number, certification_issuer, certified_on, expires_on
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	args := []any{
		sa.ResourceID,
		sa.SkillID,
		sa.ProficiencyLevel,
		sa.CertificationNumber,
		sa.CertificationIssuer,
		nullTimePtr(sa.CertifiedOn),
		nullTimePtr(sa.ExpiresOn),
	}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&sa.ID, &sa.CreatedAt)
}
