package domain

import "time"

type EventType string

const (
	EventBookingReserved     EventType = "booking.reserved"
	EventBookingRescheduled  EventType = "booking.rescheduled"
	EventBookingCancelled    EventType = "booking.cancelled"
	EventEquipmentCheckedOut EventType = "equipment.checked_out"
	EventEquipmentCheckedIn  EventType = "equipment.checked_in"
	EventTimeEntryClosed     EventType = "time_entry.closed"
)

// Event 发布到 scheduling_events 队列中的消息
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OrganizationID int64     `json:"organizationID"`
	ResourceID     int64     `json:"resourceID"`
	OccurredAt     time.Time `json:"occurredAt"`
	Data           any       `json:"data"`
}
