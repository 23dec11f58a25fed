package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

type dateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type markRequest struct {
	Status string `json:"status" validate:"required"`
}

// markResponse reports whether a mark was applied. A locked date or an
// unknown student is not an error, only applied=false.
type markResponse struct {
	Applied bool         `json:"applied"`
	Session service.View `json:"session"`
}

// SessionHandler handles the interactive marking workflow.
type SessionHandler struct {
	deps     SessionDependencies
	validate *validator.Validate
	log      logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies, v *validator.Validate, log logger.Logger) *SessionHandler {
	return &SessionHandler{deps: deps, validate: v, log: log}
}

// HandleOpen handles POST /sessions requests.
func (h *SessionHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	const op = "api.open_session"
	date, err := h.decodeDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.OpenSession(r.Context(), date)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	view, err := h.deps.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleChangeDate handles PUT /sessions/{id}/date requests.
func (h *SessionHandler) HandleChangeDate(w http.ResponseWriter, r *http.Request) {
	const op = "api.change_date"
	date, err := h.decodeDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.ChangeDate(r.Context(), r.PathValue("id"), date)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleMark handles PUT /sessions/{id}/marks/{studentId} requests.
func (h *SessionHandler) HandleMark(w http.ResponseWriter, r *http.Request) {
	const op = "api.mark"
	var req markRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	applied, view, err := h.deps.Mark(r.Context(), r.PathValue("id"), r.PathValue("studentId"), status)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, markResponse{Applied: applied, Session: view})
}

// HandleSubmit handles POST /sessions/{id}/submit requests.
func (h *SessionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	res, err := h.deps.Submit(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleClose handles DELETE /sessions/{id} requests.
func (h *SessionHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	const op = "api.close_session"
	if err := h.deps.CloseSession(r.Context(), r.PathValue("id")); err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) decodeDate(r *http.Request) (model.Date, error) {
	var req dateRequest
	if err := decode(r, h.validate, &req); err != nil {
		return model.Date{}, err
	}
	return model.ParseDate(req.Date)
}
