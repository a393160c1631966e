// Package session holds the client-side screen state for the attendance
// board, the daily expense sheet and the monthly prediction view. Each model
// is safe for concurrent use and talks to the proxy through a narrow API
// interface so it can be driven by the CLI or by tests.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/canteen-ops/internal/reconcile"
)

// Phase is the load state of a screen
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

var (
	// ErrBusy is returned when a save is already running
	ErrBusy = errors.New("operation already in progress")
	// ErrNothingToSave is returned when the save payload would be empty
	ErrNothingToSave = errors.New("nothing to save")
	// ErrReadOnly is returned when editing a row loaded from upstream
	ErrReadOnly = errors.New("row is read-only")
	// ErrNotFound is returned for an unknown row id
	ErrNotFound = errors.New("row not found")
	// ErrStale is returned by a load that was overtaken by a newer one
	ErrStale = errors.New("load superseded by a newer request")
)

// AttendanceAPI is the part of the proxy API the attendance board uses
type AttendanceAPI interface {
	FetchAttendance(ctx context.Context, day time.Time, limit, offset int) (*reconcile.AttendanceList, error)
	SaveAttendance(ctx context.Context, records []reconcile.AttendanceSaveRecord) error
}

// ExpenseAPI is the part of the proxy API the expense sheet uses
type ExpenseAPI interface {
	FetchExpenses(ctx context.Context, day time.Time) ([]reconcile.ExpenseItem, error)
	SaveExpenses(ctx context.Context, records []reconcile.ExpenseSaveRecord) error
	FetchIngredients(ctx context.Context) ([]reconcile.IngredientOption, error)
}

// PredictionAPI is the part of the proxy API the prediction view uses
type PredictionAPI interface {
	FetchMonthlyPrediction(ctx context.Context, year, month int) (*reconcile.MonthlyPrediction, error)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
