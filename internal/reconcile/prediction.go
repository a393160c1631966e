package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DailyPrediction is one predicted day
type DailyPrediction struct {
	Date             string  `json:"date"` // YYYY-MM-DD
	PredictedExpense float64 `json:"predicted_expense"`
}

// MonthlyPrediction is the prediction service response
type MonthlyPrediction struct {
	Year                  int               `json:"year"`
	Month                 int               `json:"month"`
	TotalPredictedExpense float64           `json:"total_predicted_expense"`
	DailyPredictions      []DailyPrediction `json:"daily_predictions"`
}

// ParseMonthlyPrediction decodes a prediction response
func ParseMonthlyPrediction(body []byte) (*MonthlyPrediction, error) {
	var p MonthlyPrediction
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	if p.DailyPredictions == nil {
		p.DailyPredictions = []DailyPrediction{}
	}
	return &p, nil
}

// MaxDaily returns the largest positive daily prediction, or 0
func (p *MonthlyPrediction) MaxDaily() float64 {
	max := 0.0
	for _, d := range p.DailyPredictions {
		if d.PredictedExpense > max {
			max = d.PredictedExpense
		}
	}
	return max
}

// BarPercent scales v against max into a whole percentage
func BarPercent(v, max float64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(v / max * 100))
}

// MonthName returns the English month name for 1..12, or "" otherwise
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return time.Month(month).String()
}
