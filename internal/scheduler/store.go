package scheduler

import (
	"context"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

// 所有查询都限定在单个组织内，找不到记录时返回包装了 ErrNotFound 的错误

type TerritoryIndex interface {
	FindActiveTerritoriesByPostalCode(ctx context.Context, orgID int64, postalCode string) ([]*domain.Territory, error)
}

type SkillRegistry interface {
	ListSkillAssignments(ctx context.Context, orgID int64, resourceIDs []int64) (map[int64][]*domain.SkillAssignment, error)
}

type ResourceFilter struct {
	Kind         domain.ResourceKind
	Bookable     *bool
	TerritoryIDs []int64 // 与资源服务区域有交集即可
}

type ResourceDirectory interface {
	GetResource(ctx context.Context, orgID int64, id int64) (*domain.Resource, error)
	ListResources(ctx context.Context, orgID int64, filter ResourceFilter) ([]*domain.Resource, error)
}

// BookingFilter 返回与 [From, To) 相交的预约
type BookingFilter struct {
	ResourceID int64
	From       time.Time
	To         time.Time
	ActiveOnly bool
	ExcludeID  int64
}

type BookingStore interface {
	GetBooking(ctx context.Context, orgID int64, id int64) (*domain.Booking, error)
	ListBookings(ctx context.Context, orgID int64, filter BookingFilter) ([]*domain.Booking, error)
	CreateBooking(ctx context.Context, booking *domain.Booking) error
	UpdateBooking(ctx context.Context, booking *domain.Booking) error
}

// AvailabilityFilter 返回基础区间与 [From, To) 相交，或者重复规则尚未结束的记录
type AvailabilityFilter struct {
	ResourceID      int64
	From            time.Time
	To              time.Time
	ExcludeID       int64
	IncludeRejected bool
}

type AvailabilityStore interface {
	GetAvailabilityEntry(ctx context.Context, orgID int64, id int64) (*domain.AvailabilityEntry, error)
	ListAvailabilityEntries(ctx context.Context, orgID int64, filter AvailabilityFilter) ([]*domain.AvailabilityEntry, error)
	CreateAvailabilityEntry(ctx context.Context, entry *domain.AvailabilityEntry) error
	UpdateAvailabilityEntry(ctx context.Context, entry *domain.AvailabilityEntry) error
}

type EquipmentStore interface {
	GetEquipment(ctx context.Context, orgID int64, id int64) (*domain.Equipment, error)
	GetEquipmentAssignment(ctx context.Context, orgID int64, id int64) (*domain.EquipmentAssignment, error)
	ListEquipmentAssignments(ctx context.Context, orgID int64, equipmentID int64, openOnly bool) ([]*domain.EquipmentAssignment, error)
	// CheckOutEquipment 在同一事务中插入借出记录并把设备状态置为 in_use
	CheckOutEquipment(ctx context.Context, assignment *domain.EquipmentAssignment) error
	// CheckInEquipment 在同一事务中关闭借出记录，并把设备状态置回 available、成色更新为归还时的成色
	CheckInEquipment(ctx context.Context, assignment *domain.EquipmentAssignment) error
	RetireEquipment(ctx context.Context, orgID int64, equipmentID int64) error
}

type TimeEntryFilter struct {
	ResourceID int64
	From       time.Time
	To         time.Time
}

type TimeEntryStore interface {
	// GetOpenTimeEntry 返回该资源最近创建的未结束记录
	GetOpenTimeEntry(ctx context.Context, orgID int64, resourceID int64) (*domain.TimeEntry, error)
	ListTimeEntries(ctx context.Context, orgID int64, filter TimeEntryFilter) ([]*domain.TimeEntry, error)
	CreateTimeEntry(ctx context.Context, entry *domain.TimeEntry) error
	CloseTimeEntry(ctx context.Context, entry *domain.TimeEntry) error
}

type Store interface {
	TerritoryIndex
	SkillRegistry
	ResourceDirectory
	BookingStore
	AvailabilityStore
	EquipmentStore
	TimeEntryStore
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
