package scheduler

import (
	"context"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

type ClockInRequest struct {
	OrganizationID int64
	ResourceID     int64
	BookingID      *int64
	EntryType      domain.TimeEntryType // 为空时按 field_work 处理
	BreakMinutes   int32
}

type ClockOutRequest struct {
	OrganizationID int64
	ResourceID     int64
	BreakMinutes   *int32 // 为空时沿用打卡时填写的休息时长
}

func validEntryType(t domain.TimeEntryType) bool {
	switch t {
	case domain.TimeEntryFieldWork, domain.TimeEntryTravel, domain.TimeEntryOffice, domain.TimeEntryTraining:
		return true
	}
	return false
}

// ClockIn 每个资源同一时刻只能有一条未结束的工时记录。
// 先查后插存在竞争，由存储层的部分唯一索引兜底并返回同样的 ErrActiveEntryExists。
func (s *Scheduler) ClockIn(ctx context.Context, req ClockInRequest) (*domain.TimeEntry, error) {
	entryType := req.EntryType
	if entryType == "" {
		entryType = domain.TimeEntryFieldWork
	}
	if !validEntryType(entryType) {
		return nil, invalid("entryType", "must be one of field_work travel office training")
	}
	if req.BreakMinutes < 0 {
		return nil, invalid("breakMinutes", "must not be negative")
	}

	res, err := s.store.GetResource(ctx, req.OrganizationID, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if req.BookingID != nil {
		booking, err := s.store.GetBooking(ctx, req.OrganizationID, *req.BookingID)
		if err != nil {
			return nil, err
		}
		if booking.ResourceID != res.ID {
			return nil, invalid("bookingID", "must belong to the resource")
		}
	}

	open, err := s.store.GetOpenTimeEntry(ctx, req.OrganizationID, res.ID)
	switch {
	case err == nil:
		return nil, ErrActiveEntryExists.WithDetails(map[string]any{"entryID": open.ID, "startTime": open.StartTime})
	case !isNotFound(err):
		return nil, err
	}

	now := s.now()
	local := now.In(s.locationOf(res))
	entry := &domain.TimeEntry{
		OrganizationID: req.OrganizationID,
		ResourceID:     res.ID,
		BookingID:      req.BookingID,
		EntryType:      entryType,
		EntryDate:      time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:      now,
		BreakMinutes:   req.BreakMinutes,
		CreatedAt:      now,
	}
	if err := s.store.CreateTimeEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ClockOut 关闭最近一条未结束的记录。负时长按原值保存并标记为待复核，不做截断。
func (s *Scheduler) ClockOut(ctx context.Context, req ClockOutRequest) (*domain.TimeEntry, error) {
	if req.BreakMinutes != nil && *req.BreakMinutes < 0 {
		return nil, invalid("breakMinutes", "must not be negative")
	}

	entry, err := s.store.GetOpenTimeEntry(ctx, req.OrganizationID, req.ResourceID)
	if err != nil {
		if isNotFound(err) {
			if _, rErr := s.store.GetResource(ctx, req.OrganizationID, req.ResourceID); rErr != nil {
				return nil, rErr
			}
			return nil, ErrNoActiveEntry
		}
		return nil, err
	}

	end := s.now()
	if req.BreakMinutes != nil {
		entry.BreakMinutes = *req.BreakMinutes
	}
	_, net := ComputeDuration(entry.StartTime, end, entry.BreakMinutes)
	entry.EndTime = &end
	entry.DurationMinutes = &net
	if net < 0 {
		entry.NeedsReview = true
		s.logger.Warn("工时记录时长为负，已标记待复核",
			"entryID", entry.ID,
			"resourceID", entry.ResourceID,
			"durationMinutes", net,
			"breakMinutes", entry.BreakMinutes,
		)
	}
	if err := s.store.CloseTimeEntry(ctx, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventTimeEntryClosed, entry.OrganizationID, entry.ResourceID, entry)
	return entry, nil
}

// ComputeDuration 返回总分钟数与扣除休息后的净分钟数，不足一分钟的部分舍去
func ComputeDuration(start, end time.Time, breakMinutes int32) (total int32, net int32) {
	total = int32(end.Sub(start) / time.Minute)
	return total, total - breakMinutes
}

func (s *Scheduler) ListTimeEntries(ctx context.Context, orgID int64, filter TimeEntryFilter) ([]*domain.TimeEntry, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return nil, invalid("to", "must be after from")
	}
	return s.store.ListTimeEntries(ctx, orgID, filter)
}
