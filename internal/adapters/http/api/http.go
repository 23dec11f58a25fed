// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/report"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/internal/domain/submission"
	"github.com/okian/rollcall/pkg/logger"
)

const maxBodyBytes = 1 << 20

// StoreDependencies is the attendance store contract served over HTTP.
type StoreDependencies interface {
	store.Store
	store.RosterWriter
}

// SessionDependencies drive the interactive marking workflow.
type SessionDependencies interface {
	OpenSession(ctx context.Context, date model.Date) (service.View, error)
	Session(ctx context.Context, id string) (service.View, error)
	ChangeDate(ctx context.Context, id string, date model.Date) (service.View, error)
	Mark(ctx context.Context, id, studentID string, status model.Status) (bool, service.View, error)
	Submit(ctx context.Context, id string) (submission.Result, error)
	CloseSession(ctx context.Context, id string) error
}

// ReportDependencies compute reports from stored records.
type ReportDependencies interface {
	DailySummary(ctx context.Context, date model.Date) (report.Daily, error)
	MonthlyAggregate(ctx context.Context, period model.Period) ([]model.MonthlyAggregate, error)
	MonthlyWorkbook(ctx context.Context, period model.Period, w io.Writer) error
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StoreDependencies
	SessionDependencies
	ReportDependencies
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithStoreAPI toggles the /students and /attendance endpoints.
func WithStoreAPI(enabled bool) Option {
	return func(s *Server) {
		s.storeAPI = enabled
	}
}

// WithRequestTimeout bounds every handler's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server wires HTTP routes for the attendance API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	studentHandler *StudentHandler
	recordHandler  *RecordHandler
	sessionHandler *SessionHandler
	reportHandler  *ReportHandler

	storeAPI bool
	timeout  time.Duration
	log      logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		storeAPI: true,
		timeout:  15 * time.Second,
		log:      logger.For("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	v := newValidator()
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.studentHandler = NewStudentHandler(deps, v, s.log)
	s.recordHandler = NewRecordHandler(deps, v, s.log)
	s.sessionHandler = NewSessionHandler(deps, v, s.log)
	s.reportHandler = NewReportHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.withTimeout(h), endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())

	if s.storeAPI {
		route("GET /students", "students", s.studentHandler.HandleList)
		route("POST /students", "students", s.studentHandler.HandleCreate)
		route("PUT /students/{id}", "student", s.studentHandler.HandleUpdate)
		route("DELETE /students/{id}", "student", s.studentHandler.HandleDelete)

		route("GET /attendance/daily", "attendance_daily", s.recordHandler.HandleDaily)
		route("GET /attendance/monthly", "attendance_monthly", s.recordHandler.HandleMonthly)
		route("POST /attendance/mark", "attendance_mark", s.recordHandler.HandleMark)
		route("PUT /attendance/edit", "attendance_edit", s.recordHandler.HandleEdit)
	}

	route("POST /sessions", "sessions", s.sessionHandler.HandleOpen)
	route("GET /sessions/{id}", "session", s.sessionHandler.HandleGet)
	route("DELETE /sessions/{id}", "session", s.sessionHandler.HandleClose)
	route("PUT /sessions/{id}/date", "session_date", s.sessionHandler.HandleChangeDate)
	route("PUT /sessions/{id}/marks/{studentId}", "session_mark", s.sessionHandler.HandleMark)
	route("POST /sessions/{id}/submit", "session_submit", s.sessionHandler.HandleSubmit)

	route("GET /reports/daily", "report_daily", s.reportHandler.HandleDaily)
	route("GET /reports/monthly", "report_monthly", s.reportHandler.HandleMonthly)
	route("GET /reports/monthly.xlsx", "report_monthly_xlsx", s.reportHandler.HandleMonthlyWorkbook)
}

func (s *Server) withTimeout(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail classifies err, logs server-side faults and writes the response.
func fail(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.String("code", code), logger.Error(err))
	}
	writeError(w, status, code, err)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, v *validator.Validate, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := v.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

func queryDate(r *http.Request) (model.Date, error) {
	return model.ParseDate(r.URL.Query().Get("date"))
}

func queryPeriod(r *http.Request) (model.Period, error) {
	q := r.URL.Query()
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		return model.Period{}, fmt.Errorf("%w: month %q", model.ErrInvalidPeriod, q.Get("month"))
	}
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		return model.Period{}, fmt.Errorf("%w: year %q", model.ErrInvalidPeriod, q.Get("year"))
	}
	p := model.Period{Month: time.Month(month), Year: year}
	return p, p.Validate()
}
