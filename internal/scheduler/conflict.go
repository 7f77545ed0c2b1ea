package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

type ConflictKind string

const (
	ConflictBooking      ConflictKind = "booking"
	ConflictAvailability ConflictKind = "availability"
)

type Conflict struct {
	Kind      ConflictKind `json:"kind"`
	BookingID int64        `json:"bookingID,omitempty"`
	EntryID   int64        `json:"entryID,omitempty"`
	Start     time.Time    `json:"start"`
	End       time.Time    `json:"end"`
}

type ConflictQuery struct {
	OrganizationID   int64
	ResourceID       int64
	Window           Window
	ExcludeBookingID int64 // 改期时排除预约本身
}

// FindConflicts 列出与窗口重叠的非终止预约以及未被驳回的阻塞记录
func (s *Scheduler) FindConflicts(ctx context.Context, q ConflictQuery) ([]Conflict, error) {
	if err := q.Window.Validate(); err != nil {
		return nil, err
	}
	res, err := s.store.GetResource(ctx, q.OrganizationID, q.ResourceID)
	if err != nil {
		return nil, err
	}
	return s.conflictsFor(ctx, res, q.Window, q.ExcludeBookingID)
}

func (s *Scheduler) HasConflict(ctx context.Context, q ConflictQuery) (bool, error) {
	conflicts, err := s.FindConflicts(ctx, q)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

func (s *Scheduler) conflictsFor(ctx context.Context, res *domain.Resource, w Window, excludeBookingID int64) ([]Conflict, error) {
	bookings, err := s.store.ListBookings(ctx, res.OrganizationID, BookingFilter{
		ResourceID: res.ID,
		From:       w.Start,
		To:         w.End,
		ActiveOnly: true,
		ExcludeID:  excludeBookingID,
	})
	if err != nil {
		return nil, err
	}
	conflicts := bookingConflicts(bookings, w, excludeBookingID)

	blocks, err := s.blockConflicts(ctx, res, w)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, blocks...)

	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Start.Before(conflicts[j].Start)
	})
	return conflicts, nil
}

// bookingConflicts 在内存中重新套用重叠与终止状态判断，不依赖存储层的过滤是否精确
func bookingConflicts(bookings []*domain.Booking, w Window, excludeBookingID int64) []Conflict {
	var conflicts []Conflict
	for _, b := range bookings {
		if b.ID == excludeBookingID || b.Status.IsTerminal() {
			continue
		}
		if w.Overlaps(b.ScheduledStart, b.ScheduledEnd) {
			conflicts = append(conflicts, Conflict{
				Kind:      ConflictBooking,
				BookingID: b.ID,
				Start:     b.ScheduledStart,
				End:       b.ScheduledEnd,
			})
		}
	}
	return conflicts
}

func (s *Scheduler) blockConflicts(ctx context.Context, res *domain.Resource, w Window) ([]Conflict, error) {
	entries, err := s.store.ListAvailabilityEntries(ctx, res.OrganizationID, AvailabilityFilter{
		ResourceID: res.ID,
		From:       w.Start,
		To:         w.End,
	})
	if err != nil {
		return nil, err
	}

	loc := s.locationOf(res)
	var conflicts []Conflict
	for _, entry := range entries {
		if entry.Kind != domain.AvailabilityBlock || entry.Status == domain.ApprovalRejected {
			continue
		}
		for _, inst := range expandEntry(entry, w.Start, w.End, loc) {
			conflicts = append(conflicts, Conflict{
				Kind:    ConflictAvailability,
				EntryID: entry.ID,
				Start:   inst.Start,
				End:     inst.End,
			})
		}
	}
	return conflicts, nil
}
