package scheduler

import (
	"context"
	"strings"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

type CheckOutRequest struct {
	OrganizationID int64
	EquipmentID    int64
	ResourceID     int64
	Condition      domain.EquipmentCondition // 为空时沿用设备当前成色
	Notes          string
}

type CheckInRequest struct {
	OrganizationID int64
	EquipmentID    int64
	AssignmentID   int64
	Condition      domain.EquipmentCondition
	Notes          string
}

func validCondition(c domain.EquipmentCondition) bool {
	switch c {
	case domain.ConditionNew, domain.ConditionGood, domain.ConditionFair, domain.ConditionPoor, domain.ConditionDamaged:
		return true
	}
	return false
}

// CheckOut available -> in_use。
// 除了状态检查，还要求不存在未归还的借出记录；并发下由存储层的部分唯一索引兜底。
func (s *Scheduler) CheckOut(ctx context.Context, req CheckOutRequest) (*domain.EquipmentAssignment, error) {
	if req.ResourceID <= 0 {
		return nil, invalid("resourceID", "is required")
	}
	if req.Condition != "" && !validCondition(req.Condition) {
		return nil, invalid("conditionAtCheckout", "must be one of new good fair poor damaged")
	}

	equipment, err := s.store.GetEquipment(ctx, req.OrganizationID, req.EquipmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetResource(ctx, req.OrganizationID, req.ResourceID); err != nil {
		return nil, err
	}
	if equipment.Status != domain.EquipmentAvailable {
		return nil, ErrNotAvailable.WithDetails(map[string]any{"status": equipment.Status})
	}
	open, err := s.store.ListEquipmentAssignments(ctx, req.OrganizationID, equipment.ID, true)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		return nil, ErrNotAvailable.WithDetails(map[string]any{"assignmentID": open[0].ID})
	}

	condition := req.Condition
	if condition == "" {
		condition = equipment.Condition
	}
	assignment := &domain.EquipmentAssignment{
		OrganizationID:      req.OrganizationID,
		EquipmentID:         equipment.ID,
		ResourceID:          req.ResourceID,
		AssignedAt:          s.now(),
		ConditionAtCheckout: condition,
		Notes:               strings.TrimSpace(req.Notes),
	}
	if err := s.store.CheckOutEquipment(ctx, assignment); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventEquipmentCheckedOut, assignment.OrganizationID, assignment.ResourceID, assignment)
	return assignment, nil
}

// CheckIn in_use -> available，只关闭借出记录，不删除。归还成色成为设备的新成色。
func (s *Scheduler) CheckIn(ctx context.Context, req CheckInRequest) (*domain.EquipmentAssignment, error) {
	if req.AssignmentID <= 0 {
		return nil, invalid("assignmentID", "is required")
	}
	if !validCondition(req.Condition) {
		return nil, invalid("conditionAtReturn", "must be one of new good fair poor damaged")
	}

	assignment, err := s.store.GetEquipmentAssignment(ctx, req.OrganizationID, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.EquipmentID != req.EquipmentID {
		return nil, notFound("equipment assignment", req.AssignmentID)
	}
	if !assignment.IsOpen() {
		return nil, ErrAlreadyCheckedIn.WithDetails(map[string]any{"returnedAt": assignment.ReturnedAt})
	}

	now := s.now()
	condition := req.Condition
	assignment.ReturnedAt = &now
	assignment.ConditionAtReturn = &condition
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		if assignment.Notes != "" {
			assignment.Notes += "\n"
		}
		assignment.Notes += notes
	}
	if err := s.store.CheckInEquipment(ctx, assignment); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventEquipmentCheckedIn, assignment.OrganizationID, assignment.ResourceID, assignment)
	return assignment, nil
}

func (s *Scheduler) GetEquipmentAssignment(ctx context.Context, orgID, assignmentID int64) (*domain.EquipmentAssignment, error) {
	return s.store.GetEquipmentAssignment(ctx, orgID, assignmentID)
}

// Retire available -> retired，单向终止状态
func (s *Scheduler) Retire(ctx context.Context, orgID, equipmentID int64) (*domain.Equipment, error) {
	equipment, err := s.store.GetEquipment(ctx, orgID, equipmentID)
	if err != nil {
		return nil, err
	}
	if equipment.Status == domain.EquipmentRetired {
		return nil, ErrAlreadyRetired
	}
	open, err := s.store.ListEquipmentAssignments(ctx, orgID, equipment.ID, true)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 || equipment.Status == domain.EquipmentInUse {
		return nil, ErrActiveAssignmentExists
	}

	if err := s.store.RetireEquipment(ctx, orgID, equipment.ID); err != nil {
		return nil, err
	}
	equipment.Status = domain.EquipmentRetired
	return equipment, nil
}

// EquipmentHistory 按借出时间倒序返回全部借还记录
func (s *Scheduler) EquipmentHistory(ctx context.Context, orgID, equipmentID int64) ([]*domain.EquipmentAssignment, error) {
	if _, err := s.store.GetEquipment(ctx, orgID, equipmentID); err != nil {
		return nil, err
	}
	return s.store.ListEquipmentAssignments(ctx, orgID, equipmentID, false)
}
