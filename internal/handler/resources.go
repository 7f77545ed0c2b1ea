package handler

import (
	"net/http"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	territoryID, err := queryInt64(q, "territory")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	skillID, err := queryInt64(q, "skill")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	bookable, err := queryBool(q, "bookable")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	resources, err := h.scheduler.ListResources(r.Context(), scheduler.ResourceQuery{
		OrganizationID: organizationOf(r),
		TerritoryID:    territoryID,
		SkillID:        skillID,
		Bookable:       bookable,
		Kind:           domain.ResourceKind(q.Get("kind")),
	})
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "resources retrieved", resources)
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	res, err := h.scheduler.GetResource(r.Context(), organizationOf(r), id)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "resource retrieved", res)
}

func (h *Handler) GetResourceCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	day, err := parseDay(r.URL.Query().Get("day"))
	if err != nil {
		h.badRequest(w, r, invalidParam("day"))
		return
	}

	capacity, err := h.scheduler.DailyCapacity(r.Context(), organizationOf(r), id, day)
	if err != nil {
		h.schedulerError(w, r, err)
		return
	}

	h.successResponse(w, r, "capacity retrieved", capacity)
}
