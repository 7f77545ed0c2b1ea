package scheduler

import (
	"context"
	"strings"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

type ReserveRequest struct {
	OrganizationID int64
	ResourceID     int64
	Window         Window
	PostalCode     string
	Address        string
	Notes          string
}

type RescheduleRequest struct {
	OrganizationID int64
	BookingID      int64
	Window         Window
}

// Reserve 先在进程内做冲突与容量预检，再插入预约。
// 真正保证同一资源的非终止预约互不重叠的是存储层的排他约束，
// 并发插入失败时存储层返回与预检相同的 ErrBookingConflict。
func (s *Scheduler) Reserve(ctx context.Context, req ReserveRequest) (*domain.Booking, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}
	postal, err := NormalizePostalCode(req.PostalCode)
	if err != nil {
		return nil, err
	}

	res, err := s.store.GetResource(ctx, req.OrganizationID, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if err := s.preflight(ctx, res, req.Window, 0); err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		OrganizationID: req.OrganizationID,
		ResourceID:     res.ID,
		ScheduledStart: req.Window.Start,
		ScheduledEnd:   req.Window.End,
		Status:         domain.BookingStatusScheduled,
		PostalCode:     postal,
		Address:        strings.TrimSpace(req.Address),
		Notes:          req.Notes,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventBookingReserved, booking.OrganizationID, booking.ResourceID, booking)
	return booking, nil
}

// Reschedule 原地修改预约时间窗口，检测时排除预约本身
func (s *Scheduler) Reschedule(ctx context.Context, req RescheduleRequest) (*domain.Booking, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}

	booking, err := s.store.GetBooking(ctx, req.OrganizationID, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !canReschedule(booking.Status) {
		return nil, ErrInvalidTransition.WithDetails(map[string]any{"status": booking.Status})
	}

	res, err := s.store.GetResource(ctx, req.OrganizationID, booking.ResourceID)
	if err != nil {
		return nil, err
	}
	if err := s.preflight(ctx, res, req.Window, booking.ID); err != nil {
		return nil, err
	}

	booking.ScheduledStart = req.Window.Start
	booking.ScheduledEnd = req.Window.End
	if err := s.store.UpdateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventBookingRescheduled, booking.OrganizationID, booking.ResourceID, booking)
	return booking, nil
}

func (s *Scheduler) Cancel(ctx context.Context, orgID, bookingID int64) (*domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, orgID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.IsTerminal() || booking.Status == domain.BookingStatusCompleted {
		return nil, ErrInvalidTransition.WithDetails(map[string]any{"status": booking.Status})
	}

	booking.Status = domain.BookingStatusCancelled
	if err := s.store.UpdateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventBookingCancelled, booking.OrganizationID, booking.ResourceID, booking)
	return booking, nil
}

func (s *Scheduler) GetBooking(ctx context.Context, orgID, bookingID int64) (*domain.Booking, error) {
	return s.store.GetBooking(ctx, orgID, bookingID)
}

func canReschedule(status domain.BookingStatus) bool {
	return status == domain.BookingStatusScheduled || status == domain.BookingStatusConfirmed
}

// preflight 写入前的快速检查：可预约、无冲突、当日未满、周工时未超
func (s *Scheduler) preflight(ctx context.Context, res *domain.Resource, w Window, excludeBookingID int64) error {
	if !res.IsBookable {
		return ErrResourceNotBookable
	}

	wl, err := s.workloadFor(ctx, res, w, excludeBookingID)
	if err != nil {
		return err
	}
	blocks, err := s.blockConflicts(ctx, res, w)
	if err != nil {
		return err
	}
	if conflicts := append(wl.conflicts, blocks...); len(conflicts) > 0 {
		return ErrBookingConflict.WithDetails(conflicts)
	}

	if !underDailyLimit(res, wl.dayCount) {
		return ErrOverCapacity.WithDetails(map[string]any{
			"bookings":  wl.dayCount,
			"maxPerDay": res.MaxAppointmentsPerDay,
		})
	}
	if !withinWeeklyHours(res, wl.weekBooked, w.Duration()) {
		return ErrOverCapacity.WithDetails(map[string]any{
			"bookedHours":     wl.weekBooked.Hours(),
			"requestedHours":  w.Duration().Hours(),
			"maxHoursPerWeek": res.MaxHoursPerWeek,
		})
	}
	return nil
}
