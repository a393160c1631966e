// Package client is a typed client for the canteen-ops proxy API. It decodes
// upstream payloads through the reconcile package so callers work with
// stable local shapes.
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

	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/reconcile"
	"github.com/garyjia/canteen-ops/internal/upstream"
	"github.com/garyjia/canteen-ops/pkg/utils"
)

// Options configures the API client
type Options struct {
	// BaseURL is the proxy origin, e.g. http://192.168.1.20:8080
	BaseURL string
	Timeout time.Duration
}

// APIError is a non-2xx reply from the proxy
type APIError struct {
	Status  int
	Message string
	// Body is the upstream body excerpt, when the proxy relayed one
	Body string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api error %d: %s: %s", e.Status, e.Message, utils.Excerpt(e.Body, 200))
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// envelope is the proxy error body
type envelope struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Client talks to the proxy API
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a new API client
func New(opts Options, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", opts.BaseURL)
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
	}, nil
}

// FetchAttendance loads one attendance page. A zero day sends an empty date.
func (c *Client) FetchAttendance(ctx context.Context, day time.Time, limit, offset int) (*reconcile.AttendanceList, error) {
	query := upstream.NewQuery().
		Literal("attendance_date", apiDate(day)).
		Literal("limit", strconv.Itoa(limit)).
		Literal("offset", strconv.Itoa(offset))

	body, err := c.do(ctx, http.MethodGet, "/api/attendance", query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	list, err := reconcile.ParseAttendanceList(body, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attendance: %w", err)
	}
	return list, nil
}

// SaveAttendance submits the bulk attendance payload
func (c *Client) SaveAttendance(ctx context.Context, records []reconcile.AttendanceSaveRecord) error {
	for i := range records {
		if err := utils.ValidateStruct(records[i]); err != nil {
			return fmt.Errorf("attendance record %d: %w", i, err)
		}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/attendance", "", records)
	return err
}

// FetchExpenses loads the expenses of one day
func (c *Client) FetchExpenses(ctx context.Context, day time.Time) ([]reconcile.ExpenseItem, error) {
	query := upstream.NewQuery().Literal("date", apiDate(day))

	body, err := c.do(ctx, http.MethodGet, "/api/expenses", query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	items, err := reconcile.ParseExpenses(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode expenses: %w", err)
	}
	return items, nil
}

// SaveExpenses submits new expense rows
func (c *Client) SaveExpenses(ctx context.Context, records []reconcile.ExpenseSaveRecord) error {
	for i := range records {
		if err := utils.ValidateStruct(records[i]); err != nil {
			return fmt.Errorf("expense record %d: %w", i, err)
		}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/expenses", "", records)
	return err
}

// FetchIngredients loads the ingredient master list
func (c *Client) FetchIngredients(ctx context.Context) ([]reconcile.IngredientOption, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/ingredients", "", nil)
	if err != nil {
		return nil, err
	}
	options, err := reconcile.ParseIngredientOptions(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ingredients: %w", err)
	}
	return options, nil
}

// FetchMonthlyPrediction loads the predicted expenses for a month
func (c *Client) FetchMonthlyPrediction(ctx context.Context, year, month int) (*reconcile.MonthlyPrediction, error) {
	query := upstream.NewQuery().
		Escaped("year", strconv.Itoa(year)).
		Escaped("month", strconv.Itoa(month))

	body, err := c.do(ctx, http.MethodGet, "/api/predictions/month", query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return reconcile.ParseMonthlyPrediction(body)
}

// Export downloads a workbook from one of the export endpoints
func (c *Client) Export(ctx context.Context, path, rawQuery string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, rawQuery, nil)
}

func (c *Client) do(ctx context.Context, method, path, rawQuery string, payload interface{}) ([]byte, error) {
	target := *c.baseURL
	target.Path = c.baseURL.Path + path
	target.RawQuery = rawQuery

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "", reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.URL = &target
	req.Host = target.Host
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("API response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == "" {
		apiErr.Body = utils.ExcerptBytes(body, 2000)
		return apiErr
	}
	apiErr.Message = env.Error
	apiErr.Body = env.Body
	return apiErr
}

func apiDate(day time.Time) string {
	if day.IsZero() {
		return ""
	}
	return reconcile.FormatAPIDate(day)
}
