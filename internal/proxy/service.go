// Package proxy maps each proxied resource onto its upstream request.
package proxy

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/upstream"
)

// Forwarder sends one request upstream
type Forwarder interface {
	Do(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// Endpoints holds the configured upstream URLs
type Endpoints struct {
	AttendanceGet  string
	AttendanceSave string
	ExpenseGet     string
	ExpenseSave    string
	Ingredients    string
	Prediction     string
}

// AttendanceQuery is a validated attendance page request.
// Date is already in MM/DD/YYYY form, or empty.
type AttendanceQuery struct {
	Date   string
	Limit  int
	Offset int
}

// Service forwards resource calls to the data and prediction services
type Service struct {
	data       Forwarder
	prediction Forwarder
	endpoints  Endpoints
	logger     *zap.Logger
}

// NewService creates a new proxy service
func NewService(data, prediction Forwarder, endpoints Endpoints, logger *zap.Logger) *Service {
	return &Service{
		data:       data,
		prediction: prediction,
		endpoints:  endpoints,
		logger:     logger,
	}
}

// FetchAttendance requests one attendance page. The date goes into the
// query with literal slashes.
func (s *Service) FetchAttendance(ctx context.Context, q AttendanceQuery) (*upstream.Response, error) {
	query := upstream.NewQuery().
		Literal("attendance_date", q.Date).
		Literal("limit", strconv.Itoa(q.Limit)).
		Literal("offset", strconv.Itoa(q.Offset))

	return s.forward(ctx, s.data, "attendance", upstream.Request{
		Method:   http.MethodGet,
		Endpoint: s.endpoints.AttendanceGet,
		RawQuery: query.Encode(),
	})
}

// SaveAttendance forwards the bulk save body byte-for-byte
func (s *Service) SaveAttendance(ctx context.Context, body []byte) (*upstream.Response, error) {
	return s.forward(ctx, s.data, "attendance_save", upstream.Request{
		Method:   http.MethodPost,
		Endpoint: s.endpoints.AttendanceSave,
		Body:     body,
		WithAuth: true,
	})
}

// FetchExpenses requests the expenses of one day (MM/DD/YYYY or empty)
func (s *Service) FetchExpenses(ctx context.Context, date string) (*upstream.Response, error) {
	return s.forward(ctx, s.data, "expenses", upstream.Request{
		Method:   http.MethodGet,
		Endpoint: s.endpoints.ExpenseGet,
		RawQuery: upstream.NewQuery().Literal("date", date).Encode(),
		WithAuth: true,
	})
}

// SaveExpenses forwards the expense save body byte-for-byte
func (s *Service) SaveExpenses(ctx context.Context, body []byte) (*upstream.Response, error) {
	return s.forward(ctx, s.data, "expenses_save", upstream.Request{
		Method:   http.MethodPost,
		Endpoint: s.endpoints.ExpenseSave,
		Body:     body,
		WithAuth: true,
	})
}

// FetchIngredients requests the ingredient master list
func (s *Service) FetchIngredients(ctx context.Context) (*upstream.Response, error) {
	return s.forward(ctx, s.data, "ingredients", upstream.Request{
		Method:   http.MethodGet,
		Endpoint: s.endpoints.Ingredients,
		WithAuth: true,
	})
}

// FetchPrediction requests the monthly prediction. The prediction service
// takes regular URL-encoded parameters and no token.
func (s *Service) FetchPrediction(ctx context.Context, year, month string) (*upstream.Response, error) {
	query := upstream.NewQuery().
		Escaped("year", year).
		Escaped("month", month)

	return s.forward(ctx, s.prediction, "prediction", upstream.Request{
		Method:   http.MethodGet,
		Endpoint: s.endpoints.Prediction,
		RawQuery: query.Encode(),
	})
}

// forward sends req and logs failures with the resource they belong to
func (s *Service) forward(ctx context.Context, to Forwarder, resource string, req upstream.Request) (*upstream.Response, error) {
	resp, err := to.Do(ctx, req)
	if err != nil {
		s.logger.Error("Upstream unreachable",
			zap.String("resource", resource),
			zap.String("endpoint", req.Endpoint),
			zap.Error(err))
		return nil, err
	}
	if !resp.OK() {
		s.logger.Warn("Upstream rejected request",
			zap.String("resource", resource),
			zap.String("endpoint", req.Endpoint),
			zap.Int("status", resp.Status))
	}
	return resp, nil
}
