package handler

import (
	"github.com/appraisal-ops/field-scheduler/backend/internal/config"
	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/appraisal-ops/field-scheduler/backend/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	scheduler  *scheduler.Scheduler
	translator ut.Translator
	tracer     trace.Tracer

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, sched *scheduler.Scheduler) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		scheduler:  sched,
		translator: trans,
		tracer:     telemetry.Tracer("field-scheduler/http"),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.requestID)
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(h.tracing)

	schedulers := []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleDispatcher}

	// 令牌由外部认证服务签发，这里只做校验
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.ListResources)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetResource)
				r.Get("/capacity", h.GetResourceCapacity)
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/conflicts", h.FindConflicts)
			r.With(h.RequiredRole(schedulers)).Post("/", h.ReserveBooking)
			r.With(h.RequiredRole(schedulers)).Post("/auto-assign", h.AutoAssign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetBooking)
				r.With(h.RequiredRole(schedulers)).Patch("/", h.RescheduleBooking)
				r.With(h.RequiredRole(schedulers)).Post("/cancel", h.CancelBooking)
			})
		})

		r.Route("/availability", func(r chi.Router) {
			r.Get("/", h.ListAvailability)
			r.Post("/", h.AddAvailabilityEntry)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetAvailabilityEntry)
				r.Patch("/", h.UpdateAvailabilityEntry)
				r.With(h.RequiredRole(approvers)).Post("/approve", h.ApproveAvailabilityEntry)
				r.With(h.RequiredRole(approvers)).Post("/reject", h.RejectAvailabilityEntry)
			})
		})

		r.Route("/equipment/{id}", func(r chi.Router) {
			r.Get("/assignments", h.GetEquipmentAssignments)
			r.Post("/assignments", h.EquipmentAssignment)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/retire", h.RetireEquipment)
		})

		r.Route("/time-entries", func(r chi.Router) {
			r.Get("/", h.ListTimeEntries)
			r.Post("/clock", h.Clock)
		})
	})
}
