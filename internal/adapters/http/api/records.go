package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// RecordDependencies defines the record operations behind /attendance.
type RecordDependencies interface {
	RecordsByDate(ctx context.Context, date model.Date) ([]model.Record, error)
	RecordsByMonth(ctx context.Context, period model.Period) ([]model.Record, error)
	Create(ctx context.Context, date model.Date, records []model.Record) error
	Update(ctx context.Context, date model.Date, records []model.Record) error
}

type recordRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,oneof=present absent"`
}

// recordSetRequest mirrors the OpenAPI schema for POST /attendance/mark
// and PUT /attendance/edit.
type recordSetRequest struct {
	Date    string          `json:"date" validate:"required,datetime=2006-01-02"`
	Records []recordRequest `json:"records" validate:"required,min=1,dive"`
}

type recordSetResponse struct {
	Date    model.Date     `json:"date"`
	Records []model.Record `json:"records"`
}

// toRecords converts the request, filling a missing per-record date with
// the set's date. The store still rejects records dated elsewhere.
func (req recordSetRequest) toRecords() (model.Date, []model.Record, error) {
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return model.Date{}, nil, err
	}
	out := make([]model.Record, len(req.Records))
	for i, rr := range req.Records {
		d := date
		if rr.Date != "" {
			if d, err = model.ParseDate(rr.Date); err != nil {
				return model.Date{}, nil, err
			}
		}
		out[i] = model.Record{StudentID: rr.StudentID, Date: d, Status: model.Status(rr.Status)}
	}
	return date, out, nil
}

// RecordHandler handles raw attendance record requests.
type RecordHandler struct {
	deps     RecordDependencies
	validate *validator.Validate
	log      logger.Logger
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(deps RecordDependencies, v *validator.Validate, log logger.Logger) *RecordHandler {
	return &RecordHandler{deps: deps, validate: v, log: log}
}

// HandleDaily handles GET /attendance/daily?date= requests.
func (h *RecordHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	const op = "api.records_by_date"
	date, err := queryDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	records, err := h.deps.RecordsByDate(r.Context(), date)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

// HandleMonthly handles GET /attendance/monthly?month=&year= requests.
func (h *RecordHandler) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	const op = "api.records_by_month"
	period, err := queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	records, err := h.deps.RecordsByMonth(r.Context(), period)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

// HandleMark handles POST /attendance/mark requests. A date that already
// has records answers 409.
func (h *RecordHandler) HandleMark(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, "api.create_records", http.StatusCreated, h.deps.Create)
}

// HandleEdit handles PUT /attendance/edit requests. A date without records
// answers 404.
func (h *RecordHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, "api.update_records", http.StatusOK, h.deps.Update)
}

func (h *RecordHandler) write(
	w http.ResponseWriter, r *http.Request, op string, status int,
	fn func(context.Context, model.Date, []model.Record) error,
) {
	var req recordSetRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	date, records, err := req.toRecords()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := fn(r.Context(), date, records); err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, status, recordSetResponse{Date: date, Records: records})
}

func nonNil(records []model.Record) []model.Record {
	if records == nil {
		return []model.Record{}
	}
	return records
}
