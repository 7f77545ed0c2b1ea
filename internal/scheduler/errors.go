package scheduler

import (
	"errors"
	"fmt"
)

// ReasonCode 机器可读的业务拒绝原因，调用方据此渲染不同的提示
type ReasonCode string

const (
	// 自动分配流水线各阶段的否定结果
	ReasonNoTerritoryCoverage   ReasonCode = "no_territory_coverage"
	ReasonNoAvailableResources  ReasonCode = "no_available_resources"
	ReasonNoResourcesWithSkills ReasonCode = "no_resources_with_skills"
	ReasonNoAvailableSlots      ReasonCode = "no_available_slots"

	CodeBookingConflict        ReasonCode = "booking_conflict"
	CodeOverCapacity           ReasonCode = "over_capacity"
	CodeResourceNotBookable    ReasonCode = "resource_not_bookable"
	CodeAvailabilityOverlap    ReasonCode = "availability_overlap"
	CodeInvalidTransition      ReasonCode = "invalid_transition"
	CodeVersionConflict        ReasonCode = "version_conflict"
	CodeNotAvailable           ReasonCode = "not_available"
	CodeAlreadyCheckedIn       ReasonCode = "already_checked_in"
	CodeActiveAssignmentExists ReasonCode = "active_assignment_exists"
	CodeAlreadyRetired         ReasonCode = "already_retired"
	CodeActiveEntryExists      ReasonCode = "active_entry_exists"
	CodeNoActiveEntry          ReasonCode = "no_active_entry"
)

var ErrNotFound = errors.New("not found")

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func notFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError 输入校验失败，在任何查询之前返回
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RuleError 业务规则冲突。两个 RuleError 只要 Code 相同即视为同一错误，
// 因此 errors.Is(err, ErrBookingConflict) 对带有 Details 的实例同样成立。
type RuleError struct {
	Code    ReasonCode
	Message string
	Details any
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuleError) Is(target error) bool {
	t, ok := target.(*RuleError)
	return ok && t.Code == e.Code
}

// WithDetails 复制一份附带细节的错误，不修改哨兵值本身
func (e *RuleError) WithDetails(details any) *RuleError {
	return &RuleError{Code: e.Code, Message: e.Message, Details: details}
}

var (
	ErrBookingConflict        = &RuleError{Code: CodeBookingConflict, Message: "the resource already has a booking or block in this window"}
	ErrOverCapacity           = &RuleError{Code: CodeOverCapacity, Message: "the resource has reached its booking capacity"}
	ErrResourceNotBookable    = &RuleError{Code: CodeResourceNotBookable, Message: "the resource is not bookable"}
	ErrAvailabilityOverlap    = &RuleError{Code: CodeAvailabilityOverlap, Message: "the entry overlaps an existing availability entry"}
	ErrInvalidTransition      = &RuleError{Code: CodeInvalidTransition, Message: "the booking cannot change from its current status"}
	ErrVersionConflict        = &RuleError{Code: CodeVersionConflict, Message: "the record was modified concurrently, please retry"}
	ErrNotAvailable           = &RuleError{Code: CodeNotAvailable, Message: "the equipment is not available for checkout"}
	ErrAlreadyCheckedIn       = &RuleError{Code: CodeAlreadyCheckedIn, Message: "the assignment has already been checked in"}
	ErrActiveAssignmentExists = &RuleError{Code: CodeActiveAssignmentExists, Message: "the equipment is still checked out"}
	ErrAlreadyRetired         = &RuleError{Code: CodeAlreadyRetired, Message: "the equipment is already retired"}
	ErrActiveEntryExists      = &RuleError{Code: CodeActiveEntryExists, Message: "the resource is already clocked in"}
	ErrNoActiveEntry          = &RuleError{Code: CodeNoActiveEntry, Message: "the resource is not clocked in"}
)

// IsExpected 业务拒绝与找不到记录都属于调用方可处理的结果，不应按异常告警
func IsExpected(err error) bool {
	var vErr *ValidationError
	var rErr *RuleError
	return errors.Is(err, ErrNotFound) || errors.As(err, &vErr) || errors.As(err, &rErr)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
