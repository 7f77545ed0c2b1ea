package handler

import (
	"net/http"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

type ContextKey string

var (
	RoleCtxKey         ContextKey = "role"
	SubCtxKey          ContextKey = "sub"
	OrganizationCtxKey ContextKey = "organization"
	RequestIDCtxKey    ContextKey = "requestID"
)

func organizationOf(r *http.Request) int64 {
	return r.Context().Value(OrganizationCtxKey).(int64)
}

func roleOf(r *http.Request) domain.Role {
	return domain.Role(r.Context().Value(RoleCtxKey).(string))
}

func subjectOf(r *http.Request) string {
	return r.Context().Value(SubCtxKey).(string)
}
