package scheduler

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

type EntryRequest struct {
	OrganizationID int64
	ResourceID     int64
	Start          time.Time
	End            time.Time
	Kind           domain.AvailabilityKind
	Reason         string
	Recurrence     *domain.Recurrence
	// ResetApproval 修改已批准的记录后退回待审批
	ResetApproval  bool
}

func (r EntryRequest) validate() error {
	if r.Start.IsZero() {
		return invalid("start", "is required")
	}
	if r.End.IsZero() {
		return invalid("end", "is required")
	}
	if !r.End.After(r.Start) {
		return invalid("end", "must be after start")
	}
	switch r.Kind {
	case domain.AvailabilityBlock, domain.AvailabilityGrant:
	default:
		return invalid("kind", "must be one of block grant")
	}
	return nil
}

// AddAvailabilityEntry 新记录与同一资源已有的未驳回记录有任何一次发生重叠即拒绝
func (s *Scheduler) AddAvailabilityEntry(ctx context.Context, req EntryRequest) (*domain.AvailabilityEntry, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	res, err := s.store.GetResource(ctx, req.OrganizationID, req.ResourceID)
	if err != nil {
		return nil, err
	}

	entry := &domain.AvailabilityEntry{
		OrganizationID: req.OrganizationID,
		ResourceID:     res.ID,
		Start:          req.Start,
		End:            req.End,
		Kind:           req.Kind,
		Reason:         strings.TrimSpace(req.Reason),
		Status:         domain.ApprovalPending,
		Recurrence:     req.Recurrence,
		CreatedAt:      s.now(),
	}
	if err := s.checkEntryOverlap(ctx, res, entry); err != nil {
		return nil, err
	}
	if err := s.store.CreateAvailabilityEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateAvailabilityEntry 整体替换区间、类型与重复规则，重叠检查排除记录本身
func (s *Scheduler) UpdateAvailabilityEntry(ctx context.Context, entryID int64, req EntryRequest) (*domain.AvailabilityEntry, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	entry, err := s.store.GetAvailabilityEntry(ctx, req.OrganizationID, entryID)
	if err != nil {
		return nil, err
	}
	if req.ResourceID != entry.ResourceID {
		return nil, invalid("resourceId", "does not match the entry")
	}
	res, err := s.store.GetResource(ctx, req.OrganizationID, entry.ResourceID)
	if err != nil {
		return nil, err
	}

	if req.ResetApproval && entry.Status == domain.ApprovalApproved {
		entry.Status = domain.ApprovalPending
	}
	entry.Start = req.Start
	entry.End = req.End
	entry.Kind = req.Kind
	entry.Reason = strings.TrimSpace(req.Reason)
	entry.Recurrence = req.Recurrence
	if entry.Status != domain.ApprovalRejected {
		if err := s.checkEntryOverlap(ctx, res, entry); err != nil {
			return nil, err
		}
	} else if err := validateRecurrence(entry, s.locationOf(res)); err != nil {
		return nil, err
	}

	if err := s.store.UpdateAvailabilityEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// SetAvailabilityStatus 审批记录。被驳回的记录不参与重叠检查，重新批准时需要再检查一次
func (s *Scheduler) SetAvailabilityStatus(ctx context.Context, orgID, entryID int64, status domain.ApprovalStatus) (*domain.AvailabilityEntry, error) {
	switch status {
	case domain.ApprovalApproved, domain.ApprovalRejected:
	default:
		return nil, invalid("status", "must be one of approved rejected")
	}
	entry, err := s.store.GetAvailabilityEntry(ctx, orgID, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status == status {
		return entry, nil
	}

	if entry.Status == domain.ApprovalRejected {
		res, err := s.store.GetResource(ctx, orgID, entry.ResourceID)
		if err != nil {
			return nil, err
		}
		if err := s.checkEntryOverlap(ctx, res, entry); err != nil {
			return nil, err
		}
	}

	entry.Status = status
	if err := s.store.UpdateAvailabilityEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Scheduler) GetAvailabilityEntry(ctx context.Context, orgID, entryID int64) (*domain.AvailabilityEntry, error) {
	return s.store.GetAvailabilityEntry(ctx, orgID, entryID)
}

// ListAvailability 读路径：把重复记录展开为窗口内的具体发生，按开始时间排序
func (s *Scheduler) ListAvailability(ctx context.Context, orgID, resourceID int64, w Window) ([]domain.AvailabilityInstance, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	res, err := s.store.GetResource(ctx, orgID, resourceID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListAvailabilityEntries(ctx, orgID, AvailabilityFilter{
		ResourceID: res.ID,
		From:       w.Start,
		To:         w.End,
	})
	if err != nil {
		return nil, err
	}

	loc := s.locationOf(res)
	instances := []domain.AvailabilityInstance{}
	for _, entry := range entries {
		if entry.Status == domain.ApprovalRejected {
			continue
		}
		instances = append(instances, expandEntry(entry, w.Start, w.End, loc)...)
	}
	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].Start.Before(instances[j].Start)
	})
	return instances, nil
}

// checkEntryOverlap 在新记录覆盖的总区间内展开双方的所有发生，任意一对重叠即返回 ErrAvailabilityOverlap
func (s *Scheduler) checkEntryOverlap(ctx context.Context, res *domain.Resource, entry *domain.AvailabilityEntry) error {
	loc := s.locationOf(res)
	if err := validateRecurrence(entry, loc); err != nil {
		return err
	}

	from, to := entrySpan(entry, loc)
	existing, err := s.store.ListAvailabilityEntries(ctx, entry.OrganizationID, AvailabilityFilter{
		ResourceID: res.ID,
		From:       from,
		To:         to,
		ExcludeID:  entry.ID,
	})
	if err != nil {
		return err
	}

	proposed := expandEntry(entry, from, to, loc)
	var conflicts []Conflict
	for _, other := range existing {
		if other.ID == entry.ID || other.Status == domain.ApprovalRejected {
			continue
		}
		for _, inst := range overlappingInstances(proposed, expandEntry(other, from, to, loc)) {
			conflicts = append(conflicts, Conflict{
				Kind:    ConflictAvailability,
				EntryID: other.ID,
				Start:   inst.Start,
				End:     inst.End,
			})
		}
	}
	if len(conflicts) > 0 {
		return ErrAvailabilityOverlap.WithDetails(conflicts)
	}
	return nil
}

// overlappingInstances 返回 others 中与 proposed 任意一次发生重叠的发生。
// 同一条记录展开的发生时长相同，开始与结束都按时间递增，因此可以双指针归并扫描。
func overlappingInstances(proposed, others []domain.AvailabilityInstance) []domain.AvailabilityInstance {
	var hits []domain.AvailabilityInstance
	i := 0
	for _, other := range others {
		for i < len(proposed) && !proposed[i].End.After(other.Start) {
			i++
		}
		if i == len(proposed) {
			break
		}
		if proposed[i].Start.Before(other.End) {
			hits = append(hits, other)
		}
	}
	return hits
}
