package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/go-playground/validator/v10"
)

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "requestID", r.Context().Value(RequestIDCtxKey), "error", err)
}

// readJSON 拒绝未知字段，请求体与声明的类型不符时直接报错
func (h *Handler) readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

type Response struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, Response{
		Success: false,
		Message: msg,
		Data:    nil,
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// 只返回第一个错误
	h.errorResponse(w, r, http.StatusBadRequest, validationErrors[0].Translate(h.translator))
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	h.errorResponse(w, r, http.StatusUnauthorized, "authentication required")
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request) {
	h.errorResponse(w, r, http.StatusForbidden, "insufficient permissions")
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.writeJSON(w, r, http.StatusInternalServerError, Response{
		Success: false,
		Message: "internal server error",
		Data:    nil,
	})
}

// schedulerError 把调度核心返回的错误映射为 HTTP 响应。
// 业务拒绝与找不到记录是调用方可以处理的结果，不记录错误日志。
func (h *Handler) schedulerError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr  *scheduler.ValidationError
		nfErr *scheduler.NotFoundError
		rErr  *scheduler.RuleError
	)

	if !scheduler.IsExpected(err) {
		h.internalServerError(w, r, err)
		return
	}

	switch {
	case errors.As(err, &vErr):
		h.errorResponse(w, r, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &nfErr):
		h.errorResponse(w, r, http.StatusNotFound, nfErr.Error())
	case errors.Is(err, scheduler.ErrNotFound):
		h.errorResponse(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &rErr):
		status := http.StatusConflict
		if rErr.Code == scheduler.CodeAvailabilityOverlap {
			status = http.StatusBadRequest
		}
		h.writeJSON(w, r, status, Response{
			Success: false,
			Code:    string(rErr.Code),
			Message: rErr.Message,
			Data:    rErr.Details,
		})
	}
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

func (h *Handler) createdResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusCreated, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

func invalidParam(name string) error {
	return fmt.Errorf("invalid %s", name)
}
