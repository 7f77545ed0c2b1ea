package handler

import (
	"net/http"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

func (h *Handler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostalCode       string              `json:"postalCode" validate:"required"`
		WindowStart      time.Time           `json:"windowStart" validate:"required"`
		WindowEnd        time.Time           `json:"windowEnd" validate:"required"`
		RequiredSkillIDs []int64             `json:"requiredSkills" validate:"dive,gt=0"`
		Kind             domain.ResourceKind `json:"kind" validate:"omitempty,oneof=person equipment vehicle facility"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.scheduler.FindBestResource(r.Context(), scheduler.AssignmentRequest{
		OrganizationID:   organizationOf(r),
		PostalCode:       req.PostalCode,
		Window:           scheduler.Window{Start: req.WindowStart, End: req.WindowEnd},
		RequiredSkillIDs: req.RequiredSkillIDs,
		Kind:             req.Kind,
	})
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	// 没有合适的资源属于正常结果，同样返回 200，由 reasonCode 说明原因
	if !result.Found() {
		h.successResponse(w, r, result.Message, result)
		return
	}
	h.successResponse(w, r, "resource found", result)
}

func (h *Handler) ReserveBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResourceID  int64     `json:"resourceId" validate:"required,gt=0"`
		WindowStart time.Time `json:"windowStart" validate:"required"`
		WindowEnd   time.Time `json:"windowEnd" validate:"required"`
		PostalCode  string    `json:"postalCode" validate:"required"`
		Address     string    `json:"address" validate:"max=500"`
		Notes       string    `json:"notes" validate:"max=2000"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	booking, err := h.scheduler.Reserve(r.Context(), scheduler.ReserveRequest{
		OrganizationID: organizationOf(r),
		ResourceID:     req.ResourceID,
		Window:         scheduler.Window{Start: req.WindowStart, End: req.WindowEnd},
		PostalCode:     req.PostalCode,
		Address:        req.Address,
		Notes:          req.Notes,
	})
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.createdResponse(w, r, "booking reserved", booking)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	booking, err := h.scheduler.GetBooking(r.Context(), organizationOf(r), id)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "booking retrieved", booking)
}

func (h *Handler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	var req struct {
		WindowStart time.Time `json:"windowStart" validate:"required"`
		WindowEnd   time.Time `json:"windowEnd" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	booking, err := h.scheduler.Reschedule(r.Context(), scheduler.RescheduleRequest{
		OrganizationID: organizationOf(r),
		BookingID:      id,
		Window:         scheduler.Window{Start: req.WindowStart, End: req.WindowEnd},
	})
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "booking rescheduled", booking)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	booking, err := h.scheduler.Cancel(r.Context(), organizationOf(r), id)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "booking cancelled", booking)
}

// FindConflicts GET /bookings/conflicts?resourceId&windowStart&windowEnd&excludeBookingId
func (h *Handler) FindConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	resourceID, err := queryInt64(q, "resourceId")
	if err != nil || resourceID == 0 {
		h.badRequest(w, r, invalidParam("resourceId"))
		return
	}
	start, err := queryTime(q, "windowStart", true)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	end, err := queryTime(q, "windowEnd", true)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	exclude, err := queryInt64(q, "excludeBookingId")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	conflicts, err := h.scheduler.FindConflicts(r.Context(), scheduler.ConflictQuery{
		OrganizationID:   organizationOf(r),
		ResourceID:       resourceID,
		Window:           scheduler.Window{Start: start, End: end},
		ExcludeBookingID: exclude,
	})
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "conflicts checked", map[string]any{
		"hasConflict": len(conflicts) > 0,
		"conflicts":   conflicts,
	})
}
