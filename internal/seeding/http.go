package seeding

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
)

// sessionView mirrors the session JSON served by /sessions.
type sessionView struct {
	ID             string        `json:"id"`
	Date           model.Date    `json:"date"`
	Entries        []model.Entry `json:"entries"`
	ExistsOnServer bool          `json:"existsOnServer"`
	Locked         bool          `json:"locked"`
	Complete       bool          `json:"complete"`
	Stats          model.Stats   `json:"stats"`
}

type markResponse struct {
	Applied bool        `json:"applied"`
	Session sessionView `json:"session"`
}

type submitResponse struct {
	Mode    string         `json:"mode"`
	Date    model.Date     `json:"date"`
	Records []model.Record `json:"records"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Method string
	Path   string
	Status int
	Code   string
	Msg    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, e.Msg)
}

// HTTPClient talks to the session, report and health endpoints.
type HTTPClient struct {
	base   string
	client *http.Client
}

func newHTTPClient(base string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var e apiError
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Code: e.Code, Msg: e.Message}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *HTTPClient) openSession(ctx context.Context, date model.Date) (sessionView, error) {
	var v sessionView
	err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{"date": date.String()}, &v)
	return v, err
}

func (c *HTTPClient) mark(ctx context.Context, id, studentID string, status model.Status) (markResponse, error) {
	var m markResponse
	path := "/sessions/" + url.PathEscape(id) + "/marks/" + url.PathEscape(studentID)
	err := c.do(ctx, http.MethodPut, path, map[string]model.Status{"status": status}, &m)
	return m, err
}

func (c *HTTPClient) submit(ctx context.Context, id string) (submitResponse, error) {
	var r submitResponse
	err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(id)+"/submit", nil, &r)
	return r, err
}

func (c *HTTPClient) closeSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) monthly(ctx context.Context, p model.Period) ([]model.MonthlyAggregate, error) {
	var rows []model.MonthlyAggregate
	q := url.Values{}
	q.Set("month", strconv.Itoa(int(p.Month)))
	q.Set("year", strconv.Itoa(p.Year))
	err := c.do(ctx, http.MethodGet, "/reports/monthly?"+q.Encode(), nil, &rows)
	return rows, err
}
