package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	baseScore          = 100
	weeklyBookingCost  = 5
	primaryTerritoryUp = 20
)

type AssignmentRequest struct {
	OrganizationID   int64
	PostalCode       string
	Window           Window
	RequiredSkillIDs []int64
	Kind             domain.ResourceKind // 为空时按 person 处理
}

type Candidate struct {
	ResourceID int64 `json:"resourceID"`
	Score      int   `json:"score"`
}

// AssignmentResult 找到资源时 ResourceID 非空；否则 ReasonCode 说明在哪一阶段被淘汰
type AssignmentResult struct {
	ResourceID   *int64      `json:"resourceID"`
	Score        int         `json:"score,omitempty"`
	Alternatives []Candidate `json:"alternatives"`
	ReasonCode   ReasonCode  `json:"reasonCode,omitempty"`
	Message      string      `json:"message,omitempty"`
}

func (r *AssignmentResult) Found() bool {
	return r.ResourceID != nil
}

func rejected(reason ReasonCode, message string) *AssignmentResult {
	return &AssignmentResult{ReasonCode: reason, Message: message, Alternatives: []Candidate{}}
}

// FindBestResource 贪心地为单个预约挑选资源：
// 区域解析 -> 资源候选 -> 技能过滤 -> 可用性过滤 -> 打分排序。
// 结果不写入任何数据，调用方确认后再通过 Reserve 落库。
func (s *Scheduler) FindBestResource(ctx context.Context, req AssignmentRequest) (*AssignmentResult, error) {
	postal, err := NormalizePostalCode(req.PostalCode)
	if err != nil {
		return nil, err
	}
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}
	for _, id := range req.RequiredSkillIDs {
		if id <= 0 {
			return nil, invalid("requiredSkills", "must contain positive skill ids")
		}
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.ResourceKindPerson
	}

	result, err := s.findBestResource(ctx, req, postal, kind)
	if err != nil {
		return nil, err
	}
	s.metrics.recordOutcome(ctx, result.ReasonCode)
	return result, nil
}

func (s *Scheduler) findBestResource(ctx context.Context, req AssignmentRequest, postal string, kind domain.ResourceKind) (*AssignmentResult, error) {
	// 1. 区域解析
	territories, err := s.territories.FindActiveTerritoriesByPostalCode(ctx, req.OrganizationID, postal)
	if err != nil {
		return nil, err
	}
	resolved := make(map[int64]struct{}, len(territories))
	territoryIDs := make([]int64, 0, len(territories))
	for _, t := range territories {
		if !t.IsActive {
			continue
		}
		resolved[t.ID] = struct{}{}
		territoryIDs = append(territoryIDs, t.ID)
	}
	if len(territoryIDs) == 0 {
		return rejected(ReasonNoTerritoryCoverage, fmt.Sprintf("no active territory covers postal code %s", postal)), nil
	}

	// 2. 资源候选
	bookable := true
	listed, err := s.store.ListResources(ctx, req.OrganizationID, ResourceFilter{
		Kind:         kind,
		Bookable:     &bookable,
		TerritoryIDs: territoryIDs,
	})
	if err != nil {
		return nil, err
	}
	var candidates []*domain.Resource
	for _, res := range listed {
		if res.IsBookable && res.Kind == kind && slices.ContainsFunc(territoryIDs, res.ServesTerritory) {
			candidates = append(candidates, res)
		}
	}
	if len(candidates) == 0 {
		return rejected(ReasonNoAvailableResources, "no bookable resource serves the resolved territories"), nil
	}

	// 3. 技能过滤
	if len(req.RequiredSkillIDs) > 0 {
		candidates, err = s.filterBySkills(ctx, req, candidates)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return rejected(ReasonNoResourcesWithSkills, "no candidate holds all required skills"), nil
		}
	}

	// 4. 可用性过滤
	scored, err := s.evaluateCandidates(ctx, req.Window, candidates, resolved)
	if err != nil {
		return nil, err
	}
	s.metrics.recordCandidates(ctx, len(scored))
	if len(scored) == 0 {
		return rejected(ReasonNoAvailableSlots, "every candidate is busy or at capacity in the requested window"), nil
	}

	// 5. 打分排序：分数降序，同分按资源 id 升序
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ResourceID < scored[j].ResourceID
	})

	best := scored[0]
	alternatives := scored[1:]
	if len(alternatives) > s.alternatives {
		alternatives = alternatives[:s.alternatives]
	}
	return &AssignmentResult{
		ResourceID:   &best.ResourceID,
		Score:        best.Score,
		Alternatives: append([]Candidate{}, alternatives...),
	}, nil
}

// filterBySkills 保留持有全部所需技能的资源。
// 证书在窗口所在的本地日与今天都必须未过期，熟练度不参与过滤。
func (s *Scheduler) filterBySkills(ctx context.Context, req AssignmentRequest, candidates []*domain.Resource) ([]*domain.Resource, error) {
	ids := make([]int64, len(candidates))
	for i, res := range candidates {
		ids[i] = res.ID
	}
	held, err := s.store.ListSkillAssignments(ctx, req.OrganizationID, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var kept []*domain.Resource
	for _, res := range candidates {
		loc := s.locationOf(res)
		valid := make(map[int64]struct{})
		for _, sa := range held[res.ID] {
			if sa.ValidOn(req.Window.Start.In(loc)) && sa.ValidOn(now.In(loc)) {
				valid[sa.SkillID] = struct{}{}
			}
		}
		ok := true
		for _, id := range req.RequiredSkillIDs {
			if _, has := valid[id]; !has {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, res)
		}
	}
	return kept, nil
}

// evaluateCandidates 并发评估候选资源，剔除有冲突、当日已满或超出周工时的资源并计算分数
func (s *Scheduler) evaluateCandidates(ctx context.Context, w Window, candidates []*domain.Resource, resolved map[int64]struct{}) ([]Candidate, error) {
	results := make([]*Candidate, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, res := range candidates {
		g.Go(func() error {
			c, err := s.evaluate(gctx, res, w, resolved)
			if err != nil {
				return fmt.Errorf("evaluate resource %d: %w", res.ID, err)
			}
			results[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scored := make([]Candidate, 0, len(candidates))
	for _, c := range results {
		if c != nil {
			scored = append(scored, *c)
		}
	}
	return scored, nil
}

func (s *Scheduler) evaluate(ctx context.Context, res *domain.Resource, w Window, resolved map[int64]struct{}) (*Candidate, error) {
	wl, err := s.workloadFor(ctx, res, w, 0)
	if err != nil {
		return nil, err
	}
	if len(wl.conflicts) > 0 {
		return nil, nil
	}
	if !underDailyLimit(res, wl.dayCount) {
		return nil, nil
	}
	if !withinWeeklyHours(res, wl.weekBooked, w.Duration()) {
		return nil, nil
	}

	blocks, err := s.blockConflicts(ctx, res, w)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return nil, nil
	}

	return &Candidate{ResourceID: res.ID, Score: score(res, wl.weekCount, resolved)}, nil
}

// score 基础分 100，每个本周已有预约扣 5 分，主区域在解析结果中加 20 分
func score(res *domain.Resource, weekBookings int, resolved map[int64]struct{}) int {
	total := baseScore - weeklyBookingCost*weekBookings
	if res.PrimaryTerritoryID != nil {
		if _, ok := resolved[*res.PrimaryTerritoryID]; ok {
			total += primaryTerritoryUp
		}
	}
	return total
}
