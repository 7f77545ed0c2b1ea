// Package notify 把调度事件转换成发给外勤人员的邮件
package notify

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/events"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	// ErrSkip 事件有效但不需要发邮件，消息直接确认
	ErrSkip = errors.New("no notification for this event")
	// ErrUnsupported 未知的事件类型，消息丢弃不重试
	ErrUnsupported = errors.New("unsupported event type")
)

const timeLayout = "Mon Jan 2, 2006 15:04 MST"

type Notifier struct {
	from      string
	resources scheduler.ResourceDirectory
	templates *template.Template
	fallback  *time.Location
}

func New(from string, resources scheduler.ResourceDirectory, fallback *time.Location) (*Notifier, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if fallback == nil {
		fallback = time.UTC
	}
	return &Notifier{
		from:      from,
		resources: resources,
		templates: templates,
		fallback:  fallback,
	}, nil
}

type view struct {
	Name       string
	Start      string
	End        string
	Minutes    int32
	Booking    *domain.Booking
	Assignment *domain.EquipmentAssignment
	Entry      *domain.TimeEntry
}

// Build 生成邮件。返回 ErrSkip 表示无需发送，ErrUnsupported 表示事件类型未知
func (n *Notifier) Build(ctx context.Context, msg *events.Message) (*mail.Msg, error) {
	var (
		tmpl    string
		subject string
		v       view
	)

	switch msg.Type {
	case domain.EventBookingReserved, domain.EventBookingRescheduled, domain.EventBookingCancelled:
		v.Booking = &domain.Booking{}
		if err := json.Unmarshal(msg.Data, v.Booking); err != nil {
			return nil, fmt.Errorf("无法解析预约数据: %w", err)
		}
		switch msg.Type {
		case domain.EventBookingReserved:
			tmpl, subject = "booking_reserved.html", "New appraisal assignment"
		case domain.EventBookingRescheduled:
			tmpl, subject = "booking_rescheduled.html", "Appraisal rescheduled"
		default:
			tmpl, subject = "booking_cancelled.html", "Appraisal cancelled"
		}
	case domain.EventEquipmentCheckedOut, domain.EventEquipmentCheckedIn:
		v.Assignment = &domain.EquipmentAssignment{}
		if err := json.Unmarshal(msg.Data, v.Assignment); err != nil {
			return nil, fmt.Errorf("无法解析设备借还数据: %w", err)
		}
		if msg.Type == domain.EventEquipmentCheckedOut {
			tmpl, subject = "equipment_checked_out.html", "Equipment checked out to you"
		} else {
			tmpl, subject = "equipment_checked_in.html", "Equipment return recorded"
		}
	case domain.EventTimeEntryClosed:
		v.Entry = &domain.TimeEntry{}
		if err := json.Unmarshal(msg.Data, v.Entry); err != nil {
			return nil, fmt.Errorf("无法解析工时数据: %w", err)
		}
		if !v.Entry.NeedsReview {
			return nil, ErrSkip
		}
		tmpl, subject = "time_entry_review.html", "Time entry flagged for review"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, msg.Type)
	}

	res, err := n.resources.GetResource(ctx, msg.OrganizationID, msg.ResourceID)
	if err != nil {
		if errors.Is(err, scheduler.ErrNotFound) {
			return nil, ErrSkip
		}
		return nil, err
	}
	if res.Email == "" {
		return nil, ErrSkip
	}

	loc := n.fallback
	if res.Timezone != "" {
		if l, err := time.LoadLocation(res.Timezone); err == nil {
			loc = l
		} else {
			slog.Warn("资源时区无效，使用默认时区", slog.Int64("resourceID", res.ID), slog.String("timezone", res.Timezone))
		}
	}
	v.Name = res.Name
	v.fill(loc)

	// 不做 quoted-printable 折行，模板本身是 UTF-8 HTML
	m := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))
	if err := m.From(n.from); err != nil {
		return nil, err
	}
	if err := m.To(res.Email); err != nil {
		return nil, err
	}
	m.Subject(subject)
	if err := m.SetBodyHTMLTemplate(n.templates.Lookup(tmpl), v); err != nil {
		return nil, err
	}
	return m, nil
}

func (v *view) fill(loc *time.Location) {
	format := func(t time.Time) string { return t.In(loc).Format(timeLayout) }

	switch {
	case v.Booking != nil:
		v.Start, v.End = format(v.Booking.ScheduledStart), format(v.Booking.ScheduledEnd)
	case v.Assignment != nil:
		v.Start = format(v.Assignment.AssignedAt)
		if v.Assignment.ReturnedAt != nil {
			v.End = format(*v.Assignment.ReturnedAt)
		}
	case v.Entry != nil:
		v.Start = format(v.Entry.StartTime)
		if v.Entry.EndTime != nil {
			v.End = format(*v.Entry.EndTime)
		}
		if v.Entry.DurationMinutes != nil {
			v.Minutes = *v.Entry.DurationMinutes
		}
	}
}
