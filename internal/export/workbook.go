// Package export renders reconciled attendance and expense data as xlsx workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/reconcile"
)

// ContentType is the xlsx MIME type
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	expenseSheet    = "Expenses"
	attendanceSheet = "Attendance"
)

// Exporter writes workbooks
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Filename returns the download name for a sheet of kind on day
func Filename(kind string, day time.Time) string {
	return fmt.Sprintf("%s-%s.xlsx", kind, reconcile.FormatInputDate(day))
}

// Expenses renders one day of expenses with a grand total row.
// Names missing on a row are resolved from the ingredient master list.
func (e *Exporter) Expenses(day time.Time, items []reconcile.ExpenseItem, options []reconcile.IngredientOption) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), expenseSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	e.setRow(f, expenseSheet, 1, "Date", reconcile.FormatAPIDate(day))
	e.setRow(f, expenseSheet, 3, "Ingredient", "Ingredient ID", "Qty", "Unit Price", "Total")

	row := 4
	for _, it := range items {
		e.setRow(f, expenseSheet, row,
			reconcile.IngredientName(it, options),
			optionalInt(it.IngredientID),
			optionalFloat(it.Qty),
			optionalFloat(it.Price),
			it.Total,
		)
		row++
	}
	e.setRow(f, expenseSheet, row+1, "Total", "", "", "", reconcile.ComputeTotalCost(items))

	e.logger.Info("Expense workbook rendered",
		zap.String("date", reconcile.FormatAPIDate(day)),
		zap.Int("rows", len(items)))

	return e.write(f)
}

// Attendance renders one attendance page with lunch and dinner counts
func (e *Exporter) Attendance(day time.Time, list *reconcile.AttendanceList) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), attendanceSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	e.setRow(f, attendanceSheet, 1, "Date", reconcile.FormatAPIDate(day))
	e.setRow(f, attendanceSheet, 3, "Code", "Name", "Dept", "Lunch", "Dinner", "Payment Status")

	row := 4
	for _, it := range list.Items {
		e.setRow(f, attendanceSheet, row,
			it.EmpCode, it.Name, it.Dept,
			yesNo(it.Lunch), yesNo(it.Dinner),
			reconcile.NormalizePaymentStatus(it.PaymentStatus),
		)
		row++
	}
	e.setRow(f, attendanceSheet, row+1, "Totals", "", "", list.LunchCount, list.DinnerCount, "")

	e.logger.Info("Attendance workbook rendered",
		zap.String("date", reconcile.FormatAPIDate(day)),
		zap.Int("rows", len(list.Items)),
		zap.Int("offset", list.Offset))

	return e.write(f)
}

func (e *Exporter) write(f *excelize.File) (*bytes.Buffer, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

// setRow writes values left to right starting at column A
func (e *Exporter) setRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		e.logger.Warn("Invalid row", zap.Int("row", row), zap.Error(err))
		return
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		e.logger.Warn("Failed to set row values",
			zap.String("sheet", sheet),
			zap.Int("row", row),
			zap.Error(err))
	}
}

func optionalInt(v *int64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
