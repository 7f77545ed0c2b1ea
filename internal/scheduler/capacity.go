package scheduler

import (
	"context"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

type DailyCapacity struct {
	ResourceID  int64     `json:"resourceID"`
	Day         time.Time `json:"day"`
	Bookings    int       `json:"bookings"`
	MaxPerDay   int32     `json:"maxPerDay"`
	HasCapacity bool      `json:"hasCapacity"`
}

// DailyCapacity 统计资源在某个本地日历日内开始的非终止预约数。
// day 只取年月日，按资源所在时区解释。
func (s *Scheduler) DailyCapacity(ctx context.Context, orgID, resourceID int64, day time.Time) (*DailyCapacity, error) {
	if day.IsZero() {
		return nil, invalid("day", "is required")
	}
	res, err := s.store.GetResource(ctx, orgID, resourceID)
	if err != nil {
		return nil, err
	}

	loc := s.locationOf(res)
	y, m, d := day.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	bookings, err := s.store.ListBookings(ctx, orgID, BookingFilter{
		ResourceID: res.ID,
		From:       dayStart,
		To:         dayEnd,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	count := countStartingIn(bookings, dayStart, dayEnd)
	return &DailyCapacity{
		ResourceID:  res.ID,
		Day:         dayStart,
		Bookings:    count,
		MaxPerDay:   res.MaxAppointmentsPerDay,
		HasCapacity: underDailyLimit(res, count),
	}, nil
}

func (s *Scheduler) HasDailyCapacity(ctx context.Context, orgID, resourceID int64, day time.Time) (bool, error) {
	c, err := s.DailyCapacity(ctx, orgID, resourceID, day)
	if err != nil {
		return false, err
	}
	return c.HasCapacity, nil
}

func underDailyLimit(res *domain.Resource, count int) bool {
	return res.MaxAppointmentsPerDay <= 0 || count < int(res.MaxAppointmentsPerDay)
}

// withinWeeklyHours 判断已预约时长加上新窗口后是否仍不超过每周上限
func withinWeeklyHours(res *domain.Resource, booked, requested time.Duration) bool {
	if res.MaxHoursPerWeek <= 0 {
		return true
	}
	return booked+requested <= time.Duration(res.MaxHoursPerWeek)*time.Hour
}

func countStartingIn(bookings []*domain.Booking, from, to time.Time) int {
	n := 0
	for _, b := range bookings {
		if b.Status.IsTerminal() {
			continue
		}
		if !b.ScheduledStart.Before(from) && b.ScheduledStart.Before(to) {
			n++
		}
	}
	return n
}

// workload 汇总资源在窗口所在日与所在周的负载，只需一次查询
type workload struct {
	conflicts  []Conflict
	dayCount   int
	weekCount  int
	weekBooked time.Duration
}

func (s *Scheduler) workloadFor(ctx context.Context, res *domain.Resource, w Window, excludeBookingID int64) (*workload, error) {
	loc := s.locationOf(res)
	dayStart, dayEnd := dayBounds(w.Start, loc)
	weekStart, weekEnd := weekBounds(w.Start, loc)

	to := weekEnd
	if w.End.After(to) {
		to = w.End
	}
	bookings, err := s.store.ListBookings(ctx, res.OrganizationID, BookingFilter{
		ResourceID: res.ID,
		From:       weekStart,
		To:         to,
		ActiveOnly: true,
		ExcludeID:  excludeBookingID,
	})
	if err != nil {
		return nil, err
	}

	var kept []*domain.Booking
	for _, b := range bookings {
		if b.ID != excludeBookingID {
			kept = append(kept, b)
		}
	}

	wl := &workload{
		conflicts: bookingConflicts(kept, w, excludeBookingID),
		dayCount:  countStartingIn(kept, dayStart, dayEnd),
	}
	for _, b := range kept {
		if b.Status.IsTerminal() {
			continue
		}
		if !b.ScheduledStart.Before(weekStart) && b.ScheduledStart.Before(weekEnd) {
			wl.weekCount++
			wl.weekBooked += b.ScheduledEnd.Sub(b.ScheduledStart)
		}
	}
	return wl, nil
}
