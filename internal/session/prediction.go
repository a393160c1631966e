package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/reconcile"
)

// PredictionBar is one day of the prediction chart
type PredictionBar struct {
	Date    string
	Amount  float64
	Percent int
}

// PredictionSnapshot is a copy of the view state
type PredictionSnapshot struct {
	Phase Phase
	Error string
	Year  int
	Month int
	Title string
	Total float64
	Max   float64
	Bars  []PredictionBar
}

// PredictionView is the monthly prediction screen
type PredictionView struct {
	api    PredictionAPI
	logger *zap.Logger

	mu         sync.Mutex
	year       int
	month      int
	prediction *reconcile.MonthlyPrediction
	phase      Phase
	err        error
	gen        uint64
}

// NewPredictionView creates an empty view
func NewPredictionView(api PredictionAPI, logger *zap.Logger) *PredictionView {
	return &PredictionView{api: api, logger: logger, phase: PhaseIdle}
}

// Load fetches the prediction for year and month (1..12)
func (v *PredictionView) Load(ctx context.Context, year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("invalid month %d", month)
	}

	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.year, v.month = year, month
	v.phase = PhaseLoading
	v.mu.Unlock()

	p, err := v.api.FetchMonthlyPrediction(ctx, year, month)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return ErrStale
	}
	if err != nil {
		v.phase = PhaseError
		v.err = err
		v.prediction = nil
		v.logger.Error("Failed to load prediction",
			zap.Int("year", year),
			zap.Int("month", month),
			zap.Error(err))
		return err
	}
	v.phase = PhaseReady
	v.err = nil
	v.prediction = p
	return nil
}

// Snapshot returns the chart-ready state
func (v *PredictionView) Snapshot() PredictionSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := PredictionSnapshot{
		Phase: v.phase,
		Error: errString(v.err),
		Year:  v.year,
		Month: v.month,
	}
	if v.month != 0 {
		snap.Title = fmt.Sprintf("%s %d", reconcile.MonthName(v.month), v.year)
	}
	if v.prediction == nil {
		return snap
	}

	snap.Total = v.prediction.TotalPredictedExpense
	snap.Max = v.prediction.MaxDaily()
	snap.Bars = make([]PredictionBar, 0, len(v.prediction.DailyPredictions))
	for _, d := range v.prediction.DailyPredictions {
		snap.Bars = append(snap.Bars, PredictionBar{
			Date:    d.Date,
			Amount:  d.PredictedExpense,
			Percent: reconcile.BarPercent(d.PredictedExpense, snap.Max),
		})
	}
	return snap
}
