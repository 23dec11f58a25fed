package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/session"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/internal/domain/submission"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// KindError tags an error with the handler operation and a sentinel kind.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Kind == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *KindError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind returns err classified as kind, raised by op.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// Wrap attaches op to err, keeping its own classification.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Op: op, Err: err}
}

// statusOf maps an error onto an HTTP status and a stable code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrStale):
		return http.StatusConflict, "superseded"
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, submission.ErrLockedDate):
		return http.StatusLocked, "locked"
	case errors.Is(err, submission.ErrIncompleteMarks):
		return http.StatusUnprocessableEntity, "incomplete"
	case errors.Is(err, submission.ErrEmptyRoster):
		return http.StatusUnprocessableEntity, "empty_roster"
	case errors.Is(err, store.ErrUnavailable):
		// Checked before NotFound: an update that lost its date is a store fault.
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, model.ErrInvalidPeriod),
		errors.Is(err, model.ErrInvalidStudent),
		errors.Is(err, store.ErrInvalidRecords):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, service.ErrRosterReadOnly):
		return http.StatusMethodNotAllowed, "roster_read_only"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
