package domain

import "time"

type BookingStatus string

const (
	BookingStatusScheduled   BookingStatus = "scheduled"
	BookingStatusConfirmed   BookingStatus = "confirmed"
	BookingStatusInProgress  BookingStatus = "in_progress"
	BookingStatusCompleted   BookingStatus = "completed"
	BookingStatusCancelled   BookingStatus = "cancelled"
	BookingStatusRescheduled BookingStatus = "rescheduled"
)

// IsTerminal 终止状态的预约不参与冲突检测与容量统计
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusRescheduled
}

type Booking struct {
	ID             int64         `json:"id"`
	OrganizationID int64         `json:"organizationID"`
	ResourceID     int64         `json:"resourceID"`
	ScheduledStart time.Time     `json:"scheduledStart"`
	ScheduledEnd   time.Time     `json:"scheduledEnd"`
	Status         BookingStatus `json:"status"`
	PostalCode     string        `json:"postalCode"`
	Address        string        `json:"address"`
	Notes          string        `json:"notes"`
	CreatedAt      time.Time     `json:"createdAt"`
	Version        int32         `json:"-"`
}
