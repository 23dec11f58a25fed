// Package client is an attendance store backed by a remote HTTP service
// speaking the /students and /attendance endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const (
	backendRemote  = "remote"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

var (
	_ store.Store        = (*Client)(nil)
	_ store.RosterWriter = (*Client)(nil)
)

// Client implements store.Store and store.RosterWriter over HTTP.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
	log   logger.Logger
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrMissingBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: defaultTimeout},
		log:  logger.For("remote-store"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RecordSet is the body of create and update requests.
type RecordSet struct {
	Date    model.Date     `json:"date"`
	Records []model.Record `json:"records"`
}

// StudentRequest is the body of roster writes.
type StudentRequest struct {
	Name       string `json:"name"`
	RollNumber int    `json:"rollNumber"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Roster fetches GET /students.
func (c *Client) Roster(ctx context.Context) (_ []model.Student, err error) {
	defer observe("roster", time.Now(), &err)
	var out []model.Student
	err = c.do(ctx, http.MethodGet, "/students", nil, nil, &out)
	return out, err
}

// RecordsByDate fetches GET /attendance/daily.
func (c *Client) RecordsByDate(ctx context.Context, date model.Date) (_ []model.Record, err error) {
	defer observe("records_by_date", time.Now(), &err)
	var out []model.Record
	q := url.Values{"date": {date.String()}}
	err = c.do(ctx, http.MethodGet, "/attendance/daily", q, nil, &out)
	return out, err
}

// RecordsByMonth fetches GET /attendance/monthly.
func (c *Client) RecordsByMonth(ctx context.Context, period model.Period) (_ []model.Record, err error) {
	defer observe("records_by_month", time.Now(), &err)
	if err := period.Validate(); err != nil {
		return nil, err
	}
	var out []model.Record
	q := url.Values{
		"month": {strconv.Itoa(int(period.Month))},
		"year":  {strconv.Itoa(period.Year)},
	}
	err = c.do(ctx, http.MethodGet, "/attendance/monthly", q, nil, &out)
	return out, err
}

// Create posts to /attendance/mark. 409 maps to store.ErrAlreadyExists.
func (c *Client) Create(ctx context.Context, date model.Date, records []model.Record) (err error) {
	defer observe("create", time.Now(), &err)
	if err := store.ValidateRecords(date, records); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/attendance/mark", nil, RecordSet{Date: date, Records: records}, nil)
}

// Update puts to /attendance/edit. 404 maps to store.ErrNotFound.
func (c *Client) Update(ctx context.Context, date model.Date, records []model.Record) (err error) {
	defer observe("update", time.Now(), &err)
	if err := store.ValidateRecords(date, records); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/attendance/edit", nil, RecordSet{Date: date, Records: records}, nil)
}

// AddStudent posts to /students.
func (c *Client) AddStudent(ctx context.Context, name string, rollNumber int) (_ model.Student, err error) {
	defer observe("add_student", time.Now(), &err)
	if err := model.ValidateStudent(name, rollNumber); err != nil {
		return model.Student{}, err
	}
	var out model.Student
	err = c.do(ctx, http.MethodPost, "/students", nil, StudentRequest{Name: name, RollNumber: rollNumber}, &out)
	return out, err
}

// UpdateStudent puts to /students/{id}.
func (c *Client) UpdateStudent(ctx context.Context, student model.Student) (_ model.Student, err error) {
	defer observe("update_student", time.Now(), &err)
	if err := model.ValidateStudent(student.Name, student.RollNumber); err != nil {
		return model.Student{}, err
	}
	var out model.Student
	body := StudentRequest{Name: student.Name, RollNumber: student.RollNumber}
	err = c.do(ctx, http.MethodPut, "/students/"+url.PathEscape(student.ID), nil, body, &out)
	return out, err
}

// DeleteStudent deletes /students/{id}.
func (c *Client) DeleteStudent(ctx context.Context, id string) (err error) {
	defer observe("delete_student", time.Now(), &err)
	return c.do(ctx, http.MethodDelete, "/students/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return store.Unavailable(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(ctx, op, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return store.Unavailable(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) statusError(ctx context.Context, op, path string, resp *http.Response) error {
	var e errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &e) != nil || e.Message == "" {
		e.Message = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("%s: %w: %s", op, store.ErrAlreadyExists, e.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %s", op, store.ErrNotFound, e.Message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if strings.HasPrefix(path, "/students") {
			return fmt.Errorf("%s: %w: %s", op, model.ErrInvalidStudent, e.Message)
		}
		return fmt.Errorf("%s: %w: %s", op, store.ErrInvalidRecords, e.Message)
	}

	c.log.Warn(ctx, "remote store failed",
		logger.String("op", op),
		logger.Int("status", resp.StatusCode),
		logger.String("message", e.Message),
	)
	return store.Unavailable(op, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, e.Message))
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveStoreOperation(backendRemote, op, start, *err)
}
