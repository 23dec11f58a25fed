package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// StudentDependencies defines the roster operations behind /students.
type StudentDependencies interface {
	Roster(ctx context.Context) ([]model.Student, error)
	AddStudent(ctx context.Context, name string, rollNumber int) (model.Student, error)
	UpdateStudent(ctx context.Context, student model.Student) (model.Student, error)
	DeleteStudent(ctx context.Context, id string) error
}

// studentRequest mirrors the OpenAPI schema for student writes.
type studentRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	RollNumber int    `json:"rollNumber" validate:"required,min=1"`
}

// StudentHandler handles roster requests.
type StudentHandler struct {
	deps     StudentDependencies
	validate *validator.Validate
	log      logger.Logger
}

// NewStudentHandler creates a new student handler.
func NewStudentHandler(deps StudentDependencies, v *validator.Validate, log logger.Logger) *StudentHandler {
	return &StudentHandler{deps: deps, validate: v, log: log}
}

// HandleList handles GET /students requests.
func (h *StudentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_students"
	students, err := h.deps.Roster(r.Context())
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

// HandleCreate handles POST /students requests.
func (h *StudentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_student"
	var req studentRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st, err := h.deps.AddStudent(r.Context(), req.Name, req.RollNumber)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// HandleUpdate handles PUT /students/{id} requests.
func (h *StudentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_student"
	var req studentRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st, err := h.deps.UpdateStudent(r.Context(), model.Student{
		ID:         r.PathValue("id"),
		Name:       req.Name,
		RollNumber: req.RollNumber,
	})
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleDelete handles DELETE /students/{id} requests.
func (h *StudentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_student"
	if err := h.deps.DeleteStudent(r.Context(), r.PathValue("id")); err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
