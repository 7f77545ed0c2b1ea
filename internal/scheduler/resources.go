package scheduler

import (
	"context"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

// ResourceQuery 供调度员手动浏览候选资源，各条件均可为空
type ResourceQuery struct {
	OrganizationID int64
	TerritoryID    int64
	SkillID        int64
	Bookable       *bool
	Kind           domain.ResourceKind
}

// ListResources 按区域、技能、可预约与类型筛选资源，技能只统计今天仍有效的
func (s *Scheduler) ListResources(ctx context.Context, q ResourceQuery) ([]*domain.Resource, error) {
	filter := ResourceFilter{Kind: q.Kind, Bookable: q.Bookable}
	if q.TerritoryID > 0 {
		filter.TerritoryIDs = []int64{q.TerritoryID}
	}
	resources, err := s.store.ListResources(ctx, q.OrganizationID, filter)
	if err != nil {
		return nil, err
	}
	if q.SkillID <= 0 || len(resources) == 0 {
		return resources, nil
	}

	ids := make([]int64, len(resources))
	for i, res := range resources {
		ids[i] = res.ID
	}
	held, err := s.store.ListSkillAssignments(ctx, q.OrganizationID, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	kept := make([]*domain.Resource, 0, len(resources))
	for _, res := range resources {
		for _, sa := range held[res.ID] {
			if sa.SkillID == q.SkillID && sa.ValidOn(now.In(s.locationOf(res))) {
				kept = append(kept, res)
				break
			}
		}
	}
	return kept, nil
}

func (s *Scheduler) GetResource(ctx context.Context, orgID, resourceID int64) (*domain.Resource, error) {
	return s.store.GetResource(ctx, orgID, resourceID)
}
