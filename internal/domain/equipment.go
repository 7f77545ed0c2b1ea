package domain

import "time"

type EquipmentStatus string

const (
	EquipmentAvailable EquipmentStatus = "available"
	EquipmentInUse     EquipmentStatus = "in_use"
	EquipmentRetired   EquipmentStatus = "retired"
)

type EquipmentCondition string

const (
	ConditionNew     EquipmentCondition = "new"
	ConditionGood    EquipmentCondition = "good"
	ConditionFair    EquipmentCondition = "fair"
	ConditionPoor    EquipmentCondition = "poor"
	ConditionDamaged EquipmentCondition = "damaged"
)

type Equipment struct {
	ID             int64              `json:"id"`
	OrganizationID int64              `json:"organizationID"`
	Name           string             `json:"name"`
	SerialNumber   string             `json:"serialNumber"`
	Status         EquipmentStatus    `json:"status"`
	Condition      EquipmentCondition `json:"condition"`
	CreatedAt      time.Time          `json:"createdAt"`
	Version        int32              `json:"-"`
}

type EquipmentAssignment struct {
	ID                  int64               `json:"id"`
	OrganizationID      int64               `json:"organizationID"`
	EquipmentID         int64               `json:"equipmentID"`
	ResourceID          int64               `json:"resourceID"`
	AssignedAt          time.Time           `json:"assignedAt"`
	ConditionAtCheckout EquipmentCondition  `json:"conditionAtCheckout"`
	ReturnedAt          *time.Time          `json:"returnedAt"`
	ConditionAtReturn   *EquipmentCondition `json:"conditionAtReturn"`
	Notes               string              `json:"notes"`
}

// IsOpen 表示设备仍处于借出状态
func (a *EquipmentAssignment) IsOpen() bool {
	return a.ReturnedAt == nil
}
