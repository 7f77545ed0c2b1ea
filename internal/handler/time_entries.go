package handler

import (
	"net/http"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

func (h *Handler) Clock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action       string `json:"action" validate:"required,oneof=in out"`
		ResourceID   int64  `json:"resourceId" validate:"required,gt=0"`
		BookingID    *int64 `json:"bookingId" validate:"omitempty,gt=0"`
		EntryType    string `json:"entryType" validate:"omitempty,oneof=field_work travel office training"`
		BreakMinutes *int32 `json:"breakMinutes" validate:"omitempty,gte=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
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

	if req.Action == "in" {
		var breakMinutes int32
		if req.BreakMinutes != nil {
			breakMinutes = *req.BreakMinutes
		}
		entry, err := h.scheduler.ClockIn(r.Context(), scheduler.ClockInRequest{
			OrganizationID: organizationOf(r),
			ResourceID:     req.ResourceID,
			BookingID:      req.BookingID,
			EntryType:      domain.TimeEntryType(req.EntryType),
			BreakMinutes:   breakMinutes,
		})
		if err != nil {
			h.schedulerError(w, r, err)
			return
		}
		h.createdResponse(w, r, "clocked in", entry)
		return
	}

	entry, err := h.scheduler.ClockOut(r.Context(), scheduler.ClockOutRequest{
		OrganizationID: organizationOf(r),
		ResourceID:     req.ResourceID,
		BreakMinutes:   req.BreakMinutes,
	})
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}
	h.successResponse(w, r, "clocked out", entry)
}

// ListTimeEntries GET /time-entries?resourceId&from&to
func (h *Handler) ListTimeEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	resourceID, err := queryInt64(q, "resourceId")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	if !canActFor(r, resourceID) {
		h.forbidden(w, r)
		return
	}
	from, err := queryTime(q, "from", false)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	to, err := queryTime(q, "to", false)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	entries, err := h.scheduler.ListTimeEntries(r.Context(), organizationOf(r), scheduler.TimeEntryFilter{
		ResourceID: resourceID,
		From:       from,
		To:         to,
	})
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "time entries retrieved", entries)
}
