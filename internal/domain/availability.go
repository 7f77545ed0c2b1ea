package domain

import "time"

type AvailabilityKind string

const (
	AvailabilityBlock AvailabilityKind = "block"
	AvailabilityGrant AvailabilityKind = "grant"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type RecurrenceFrequency string

const (
	RecurrenceDaily  RecurrenceFrequency = "daily"
	RecurrenceWeekly RecurrenceFrequency = "weekly"
)

type Recurrence struct {
	Frequency RecurrenceFrequency `json:"frequency"`
	Weekdays  []time.Weekday      `json:"weekdays"`
	Until     time.Time           `json:"until"`
}

type AvailabilityEntry struct {
	ID             int64            `json:"id"`
	OrganizationID int64            `json:"organizationID"`
	ResourceID     int64            `json:"resourceID"`
	Start          time.Time        `json:"start"`
	End            time.Time        `json:"end"`
	Kind           AvailabilityKind `json:"kind"`
	Reason         string           `json:"reason"`
	Status         ApprovalStatus   `json:"status"`
	Recurrence     *Recurrence      `json:"recurrence"`
	CreatedAt      time.Time        `json:"createdAt"`
	Version        int32            `json:"-"`
}

// AvailabilityInstance 表示某条可用性记录在查询窗口内展开后的一次具体发生
type AvailabilityInstance struct {
	EntryID    int64            `json:"entryID"`
	ResourceID int64            `json:"resourceID"`
	Kind       AvailabilityKind `json:"kind"`
	Status     ApprovalStatus   `json:"status"`
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
}
