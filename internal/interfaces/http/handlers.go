package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/export"
	"github.com/garyjia/canteen-ops/internal/proxy"
	"github.com/garyjia/canteen-ops/internal/reconcile"
	"github.com/garyjia/canteen-ops/internal/upstream"
	"github.com/garyjia/canteen-ops/pkg/utils"
)

// upstreamBodyExcerptLen bounds the upstream body echoed in error envelopes
const upstreamBodyExcerptLen = 2000

// ProxyService is the set of upstream operations the handlers relay
type ProxyService interface {
	FetchAttendance(ctx context.Context, q proxy.AttendanceQuery) (*upstream.Response, error)
	SaveAttendance(ctx context.Context, body []byte) (*upstream.Response, error)
	FetchExpenses(ctx context.Context, date string) (*upstream.Response, error)
	SaveExpenses(ctx context.Context, body []byte) (*upstream.Response, error)
	FetchIngredients(ctx context.Context) (*upstream.Response, error)
	FetchPrediction(ctx context.Context, year, month string) (*upstream.Response, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	proxy    ProxyService
	exporter *export.Exporter
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(proxy ProxyService, exporter *export.Exporter, logger *zap.Logger) *Handlers {
	return &Handlers{
		proxy:    proxy,
		exporter: exporter,
		logger:   logger,
	}
}

// ErrorResponse is the normalized error envelope.
// Status and Body are set only for upstream HTTP errors.
type ErrorResponse struct {
	Error  string  `json:"error"`
	Status int     `json:"status,omitempty"`
	Body   *string `json:"body,omitempty"`
}

// predictionQuery is bound from GET /api/predictions/month
type predictionQuery struct {
	Year  string `form:"year" binding:"required"`
	Month string `form:"month" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "canteen-ops",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// AttendanceHealth handles GET /api/attendance/health. It echoes how the
// request reached the service, which helps when diagnosing LAN access.
func (h *Handlers) AttendanceHealth(c *gin.Context) {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
		"url":  fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, c.Request.URL.RequestURI()),
		"host": c.Request.Host,
	})
}

// GetAttendance handles GET /api/attendance
func (h *Handlers) GetAttendance(c *gin.Context) {
	q, err := attendanceQueryFrom(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	resp, err := h.proxy.FetchAttendance(c.Request.Context(), q)
	h.relay(c, "attendance", resp, err)
}

// SaveAttendance handles POST /api/attendance
func (h *Handlers) SaveAttendance(c *gin.Context) {
	body, ok := h.rawBody(c)
	if !ok {
		return
	}

	resp, err := h.proxy.SaveAttendance(c.Request.Context(), body)
	h.relayOK(c, "attendance", resp, err)
}

// GetExpenses handles GET /api/expenses
func (h *Handlers) GetExpenses(c *gin.Context) {
	date, err := optionalDate(c.Query("date"))
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	resp, err := h.proxy.FetchExpenses(c.Request.Context(), date)
	h.relayOK(c, "expenses", resp, err)
}

// SaveExpenses handles POST /api/expenses
func (h *Handlers) SaveExpenses(c *gin.Context) {
	body, ok := h.rawBody(c)
	if !ok {
		return
	}

	resp, err := h.proxy.SaveExpenses(c.Request.Context(), body)
	h.relayOK(c, "expenses", resp, err)
}

// GetIngredients handles GET /api/ingredients
func (h *Handlers) GetIngredients(c *gin.Context) {
	resp, err := h.proxy.FetchIngredients(c.Request.Context())
	h.relayOK(c, "ingredients", resp, err)
}

// GetMonthlyPrediction handles GET /api/predictions/month.
// Both parameters are checked before any network call.
func (h *Handlers) GetMonthlyPrediction(c *gin.Context) {
	var q predictionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "Missing year or month")
		return
	}

	resp, err := h.proxy.FetchPrediction(c.Request.Context(), q.Year, q.Month)
	h.relayOK(c, "predictions", resp, err)
}

// ExportExpenses handles GET /api/expenses/export
func (h *Handlers) ExportExpenses(c *gin.Context) {
	day, err := requiredDate(c.Query("date"))
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	resp, err := h.proxy.FetchExpenses(ctx, reconcile.FormatAPIDate(day))
	if !h.upstreamOK(c, "expenses", resp, err) {
		return
	}
	items, err := reconcile.ParseExpenses(resp.Body)
	if err != nil {
		h.upstreamUnreadable(c, "expenses", err)
		return
	}

	// Names are cosmetic; the export still works without the master list
	var options []reconcile.IngredientOption
	if ingResp, err := h.proxy.FetchIngredients(ctx); err == nil && ingResp.OK() {
		if options, err = reconcile.ParseIngredientOptions(ingResp.Body); err != nil {
			h.logger.Warn("Ingredient list unreadable, exporting without names", zap.Error(err))
		}
	} else {
		h.logger.Warn("Ingredient list unavailable, exporting without names", zap.Error(err))
	}
	items, _ = reconcile.NormalizeIngredientNames(items, options)

	buf, err := h.exporter.Expenses(day, items, options)
	if err != nil {
		h.exportFailed(c, err)
		return
	}
	h.attachment(c, export.Filename("expenses", day), buf.Bytes())
}

// ExportAttendance handles GET /api/attendance/export
func (h *Handlers) ExportAttendance(c *gin.Context) {
	q, err := attendanceQueryFrom(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	day, err := requiredDate(q.Date)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	resp, err := h.proxy.FetchAttendance(c.Request.Context(), q)
	if !h.upstreamOK(c, "attendance", resp, err) {
		return
	}
	list, err := reconcile.ParseAttendanceList(resp.Body, q.Limit, q.Offset)
	if err != nil {
		h.upstreamUnreadable(c, "attendance", err)
		return
	}

	buf, err := h.exporter.Attendance(day, list)
	if err != nil {
		h.exportFailed(c, err)
		return
	}
	h.attachment(c, export.Filename("attendance", day), buf.Bytes())
}

// relay writes the upstream reply: 2xx bodies verbatim with the upstream
// status, everything else as an envelope
func (h *Handlers) relay(c *gin.Context, resource string, resp *upstream.Response, err error) {
	if !h.upstreamOK(c, resource, resp, err) {
		return
	}
	c.Data(resp.Status, "application/json", resp.Body)
}

// relayOK is relay with every success reported as 200
func (h *Handlers) relayOK(c *gin.Context, resource string, resp *upstream.Response, err error) {
	if !h.upstreamOK(c, resource, resp, err) {
		return
	}
	c.Data(http.StatusOK, "application/json", resp.Body)
}

// upstreamOK writes the error envelope and returns false unless resp is 2xx
func (h *Handlers) upstreamOK(c *gin.Context, resource string, resp *upstream.Response, err error) bool {
	if err != nil {
		h.logger.Error("Upstream call failed",
			zap.String("resource", resource),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return false
	}
	if !resp.OK() {
		excerpt := utils.ExcerptBytes(resp.Body, upstreamBodyExcerptLen)
		h.logger.Warn("Upstream returned error status",
			zap.String("resource", resource),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Int("status", resp.Status))
		c.JSON(resp.Status, ErrorResponse{Error: "Upstream error", Status: resp.Status, Body: &excerpt})
		return false
	}
	return true
}

func (h *Handlers) upstreamUnreadable(c *gin.Context, resource string, err error) {
	h.logger.Error("Upstream payload unreadable",
		zap.String("resource", resource),
		zap.Error(err))
	c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
}

func (h *Handlers) exportFailed(c *gin.Context, err error) {
	h.logger.Error("Export failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func (h *Handlers) attachment(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, export.ContentType, data)
}

// rawBody reads the inbound body without re-serializing it
func (h *Handlers) rawBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		h.logger.Error("Failed to read request body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return nil, false
	}
	return body, true
}

// attendanceQueryFrom reads attendance_date, limit and offset
func attendanceQueryFrom(c *gin.Context) (proxy.AttendanceQuery, error) {
	date, err := optionalDate(c.Query("attendance_date"))
	if err != nil {
		return proxy.AttendanceQuery{}, err
	}
	limit, err := nonNegative("limit", c.Query("limit"), reconcile.DefaultLimit)
	if err != nil {
		return proxy.AttendanceQuery{}, err
	}
	offset, err := nonNegative("offset", c.Query("offset"), 0)
	if err != nil {
		return proxy.AttendanceQuery{}, err
	}
	return proxy.AttendanceQuery{Date: date, Limit: limit, Offset: offset}, nil
}

// optionalDate canonicalizes a date to MM/DD/YYYY; empty stays empty
func optionalDate(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	date, err := reconcile.CanonicalAPIDate(raw)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected MM/DD/YYYY", raw)
	}
	return date, nil
}

func requiredDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required (MM/DD/YYYY)")
	}
	day, err := reconcile.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected MM/DD/YYYY", raw)
	}
	return day, nil
}

func nonNegative(name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}
