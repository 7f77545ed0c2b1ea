package handler

import (
	"net/http"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

type recurrenceRequest struct {
	Frequency string `json:"frequency" validate:"required,oneof=daily weekly"`
	Weekdays  []int  `json:"weekdays" validate:"omitempty,max=7,dive,gte=0,lte=6"`
	Until     string `json:"until" validate:"required,datetime=2006-01-02"`
}

type entryRequest struct {
	ResourceID int64              `json:"resourceId" validate:"required,gt=0"`
	Start      time.Time          `json:"start" validate:"required"`
	End        time.Time          `json:"end" validate:"required"`
	Kind       string             `json:"kind" validate:"required,oneof=block grant"`
	Reason     string             `json:"reason" validate:"max=500"`
	Recurrence *recurrenceRequest `json:"recurrence"`
}

func (req *entryRequest) toScheduler(orgID int64) (scheduler.EntryRequest, error) {
	entry := scheduler.EntryRequest{
		OrganizationID: orgID,
		ResourceID:     req.ResourceID,
		Start:          req.Start,
		End:            req.End,
		Kind:           domain.AvailabilityKind(req.Kind),
		Reason:         req.Reason,
	}

	if req.Recurrence != nil {
		until, err := parseDay(req.Recurrence.Until)
		if err != nil {
			return entry, invalidParam("recurrence.until")
		}
		weekdays := make([]time.Weekday, 0, len(req.Recurrence.Weekdays))
		for _, d := range req.Recurrence.Weekdays {
			weekdays = append(weekdays, time.Weekday(d))
		}
		entry.Recurrence = &domain.Recurrence{
			Frequency: domain.RecurrenceFrequency(req.Recurrence.Frequency),
			Weekdays:  weekdays,
			Until:     until,
		}
	}
	return entry, nil
}

func (h *Handler) readEntryRequest(w http.ResponseWriter, r *http.Request) (scheduler.EntryRequest, bool) {
	var req entryRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return scheduler.EntryRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return scheduler.EntryRequest{}, false
	}
	if !canActFor(r, req.ResourceID) {
		h.forbidden(w, r)
		return scheduler.EntryRequest{}, false
	}

	entry, err := req.toScheduler(organizationOf(r))
	if err != nil {
		h.badRequest(w, r, err)
		return scheduler.EntryRequest{}, false
	}
	return entry, true
}

func (h *Handler) AddAvailabilityEntry(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readEntryRequest(w, r)
	if !ok {
		return
	}

	entry, err := h.scheduler.AddAvailabilityEntry(r.Context(), req)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.createdResponse(w, r, "availability entry created", entry)
}

func (h *Handler) GetAvailabilityEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	entry, err := h.scheduler.GetAvailabilityEntry(r.Context(), organizationOf(r), id)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "availability entry retrieved", entry)
}

func (h *Handler) UpdateAvailabilityEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 按已存记录的资源鉴权，请求体中的 resourceId 只用于核对
	current, err := h.scheduler.GetAvailabilityEntry(r.Context(), organizationOf(r), id)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}
	if !canActFor(r, current.ResourceID) {
		h.forbidden(w, r)
		return
	}

	req, ok := h.readEntryRequest(w, r)
	if !ok {
		return
	}
	req.ResetApproval = !canApprove(r)

	entry, err := h.scheduler.UpdateAvailabilityEntry(r.Context(), id, req)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "availability entry updated", entry)
}

func (h *Handler) ApproveAvailabilityEntry(w http.ResponseWriter, r *http.Request) {
	h.setAvailabilityStatus(w, r, domain.ApprovalApproved)
}

func (h *Handler) RejectAvailabilityEntry(w http.ResponseWriter, r *http.Request) {
	h.setAvailabilityStatus(w, r, domain.ApprovalRejected)
}

func (h *Handler) setAvailabilityStatus(w http.ResponseWriter, r *http.Request, status domain.ApprovalStatus) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	entry, err := h.scheduler.SetAvailabilityStatus(r.Context(), organizationOf(r), id, status)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "availability entry "+string(status), entry)
}

// ListAvailability GET /availability?resourceId&from&to 返回窗口内展开后的具体时段
func (h *Handler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	resourceID, err := queryInt64(q, "resourceId")
	if err != nil || resourceID == 0 {
		h.badRequest(w, r, invalidParam("resourceId"))
		return
	}
	from, err := queryTime(q, "from", true)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	to, err := queryTime(q, "to", true)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	instances, err := h.scheduler.ListAvailability(r.Context(), organizationOf(r), resourceID, scheduler.Window{Start: from, End: to})
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "availability retrieved", instances)
}
