package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler handles report requests.
type ReportHandler struct {
	deps ReportDependencies
	log  logger.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportDependencies, log logger.Logger) *ReportHandler {
	return &ReportHandler{deps: deps, log: log}
}

// HandleDaily handles GET /reports/daily?date= requests.
func (h *ReportHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	const op = "api.daily_report"
	date, err := queryDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	daily, err := h.deps.DailySummary(r.Context(), date)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	if daily.Entries == nil {
		daily.Entries = []model.Entry{}
	}
	writeJSON(w, http.StatusOK, daily)
}

// HandleMonthly handles GET /reports/monthly?month=&year= requests.
func (h *ReportHandler) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	const op = "api.monthly_report"
	period, err := queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.MonthlyAggregate(r.Context(), period)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	if rows == nil {
		rows = []model.MonthlyAggregate{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleMonthlyWorkbook handles GET /reports/monthly.xlsx requests.
func (h *ReportHandler) HandleMonthlyWorkbook(w http.ResponseWriter, r *http.Request) {
	const op = "api.monthly_workbook"
	period, err := queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	// Buffered so a failure can still become a JSON error.
	var buf bytes.Buffer
	if err := h.deps.MonthlyWorkbook(r.Context(), period, &buf); err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance-%s.xlsx"`, period))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
