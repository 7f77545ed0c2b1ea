package domain

import (
	"slices"
	"time"
)

type ResourceKind string

const (
	ResourceKindPerson    ResourceKind = "person"
	ResourceKindEquipment ResourceKind = "equipment"
	ResourceKindVehicle   ResourceKind = "vehicle"
	ResourceKindFacility  ResourceKind = "facility"
)

type EmploymentType string

const (
	EmploymentEmployee   EmploymentType = "employee"
	EmploymentContractor EmploymentType = "contractor"
	EmploymentNone       EmploymentType = "none"
)

type Resource struct {
	ID                    int64          `json:"id"`
	OrganizationID        int64          `json:"organizationID"`
	Code                  string         `json:"code"`
	Name                  string         `json:"name"`
	Email                 string         `json:"email"`
	Kind                  ResourceKind   `json:"kind"`
	Employment            EmploymentType `json:"employment"`
	IsBookable            bool           `json:"isBookable"`
	MaxAppointmentsPerDay int32          `json:"maxAppointmentsPerDay"` // 0 表示不限
	MaxHoursPerWeek       int32          `json:"maxHoursPerWeek"`       // 0 表示不限
	Timezone              string         `json:"timezone"`
	PrimaryTerritoryID    *int64         `json:"primaryTerritoryID"`
	TerritoryIDs          []int64        `json:"territoryIDs"`
	EquipmentIDs          []int64        `json:"equipmentIDs"`
	CreatedAt             time.Time      `json:"createdAt"`
	Version               int32          `json:"-"`
}

// ServesTerritory 判断资源是否服务于指定区域
func (r *Resource) ServesTerritory(id int64) bool {
	return slices.Contains(r.TerritoryIDs, id)
}
