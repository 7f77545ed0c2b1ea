package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

const (
	assignmentCheckOut = "check_out"
	assignmentCheckIn  = "check_in"
)

type checkOutRequest struct {
	Type                string `json:"type"`
	ResourceID          int64  `json:"resourceId" validate:"required,gt=0"`
	ConditionAtCheckout string `json:"conditionAtCheckout" validate:"omitempty,oneof=new good fair poor damaged"`
	Notes               string `json:"notes" validate:"max=2000"`
}

type checkInRequest struct {
	Type              string `json:"type"`
	AssignmentID      int64  `json:"assignmentId" validate:"required,gt=0"`
	ConditionAtReturn string `json:"conditionAtReturn" validate:"required,oneof=new good fair poor damaged"`
	Notes             string `json:"notes" validate:"max=2000"`
}

// EquipmentAssignment 借出与归还共用一个端点，由 type 字段区分。
// 请求体按声明的类型严格解码，带有另一种请求字段的请求体直接拒绝。
func (h *Handler) EquipmentAssignment(w http.ResponseWriter, r *http.Request) {
	equipmentID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	var tag struct {
		Type string `json:"type" validate:"required,oneof=check_out check_in"`
	}
	if err := json.Unmarshal(body, &tag); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(tag); err != nil {
		h.badRequest(w, r, err)
		return
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	switch tag.Type {
	case assignmentCheckOut:
		var req checkOutRequest
		if err := dec.Decode(&req); err != nil {
			h.badRequest(w, r, err)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			h.badRequest(w, r, err)
			return
		}
		if !canActFor(r, req.ResourceID) {
			h.forbidden(w, r)
			return
		}

		assignment, err := h.scheduler.CheckOut(r.Context(), scheduler.CheckOutRequest{
			OrganizationID: organizationOf(r),
			EquipmentID:    equipmentID,
			ResourceID:     req.ResourceID,
			Condition:      domain.EquipmentCondition(req.ConditionAtCheckout),
			Notes:          req.Notes,
		})
		if err != nil {
			h.schedulerError(w, r, err)
			return
		}
		h.createdResponse(w, r, "equipment checked out", assignment)

	case assignmentCheckIn:
		var req checkInRequest
		if err := dec.Decode(&req); err != nil {
			h.badRequest(w, r, err)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			h.badRequest(w, r, err)
			return
		}

		// 评估师只能归还自己借出的设备
		held, err := h.scheduler.GetEquipmentAssignment(r.Context(), organizationOf(r), req.AssignmentID)
		if err != nil {
			h.schedulerError(w, r, err)
			return
		}
		if !canActFor(r, held.ResourceID) {
			h.forbidden(w, r)
			return
		}

		assignment, err := h.scheduler.CheckIn(r.Context(), scheduler.CheckInRequest{
			OrganizationID: organizationOf(r),
			EquipmentID:    equipmentID,
			AssignmentID:   req.AssignmentID,
			Condition:      domain.EquipmentCondition(req.ConditionAtReturn),
			Notes:          req.Notes,
		})
		if err != nil {
			h.schedulerError(w, r, err)
			return
		}
		h.successResponse(w, r, "equipment checked in", assignment)
	}
}

func (h *Handler) GetEquipmentAssignments(w http.ResponseWriter, r *http.Request) {
	equipmentID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	history, err := h.scheduler.EquipmentHistory(r.Context(), organizationOf(r), equipmentID)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "equipment assignments retrieved", history)
}

func (h *Handler) RetireEquipment(w http.ResponseWriter, r *http.Request) {
	equipmentID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	equipment, err := h.scheduler.Retire(r.Context(), organizationOf(r), equipmentID)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "equipment retired", equipment)
}
