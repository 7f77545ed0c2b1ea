package domain

import "time"

type TimeEntryType string

const (
	TimeEntryFieldWork TimeEntryType = "field_work"
	TimeEntryTravel    TimeEntryType = "travel"
	TimeEntryOffice    TimeEntryType = "office"
	TimeEntryTraining  TimeEntryType = "training"
)

type TimeEntry struct {
	ID              int64         `json:"id"`
	OrganizationID  int64         `json:"organizationID"`
	ResourceID      int64         `json:"resourceID"`
	BookingID       *int64        `json:"bookingID"`
	EntryType       TimeEntryType `json:"entryType"`
	EntryDate       time.Time     `json:"entryDate"`
	StartTime       time.Time     `json:"startTime"`
	EndTime         *time.Time    `json:"endTime"`
	BreakMinutes    int32         `json:"breakMinutes"`
	DurationMinutes *int32        `json:"durationMinutes"`
	NeedsReview     bool          `json:"needsReview"` // 时长为负时标记，交由人工复核
	CreatedAt       time.Time     `json:"createdAt"`
}

func (e *TimeEntry) IsOpen() bool {
	return e.EndTime == nil
}
