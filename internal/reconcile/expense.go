package reconcile

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseItem is one row of the daily expense sheet.
// Qty and Price stay nil until entered so "not entered" and zero differ.
type ExpenseItem struct {
	ID           int64    `json:"id"`
	Ingredient   string   `json:"ingredient"`
	IngredientID *int64   `json:"ingredientId"`
	Qty          *float64 `json:"qty"`
	Price        *float64 `json:"price"`
	Total        float64  `json:"total"`
	// Persisted rows were loaded from upstream; they are read-only and never re-submitted
	Persisted bool `json:"persisted"`
}

// ExpenseSaveRecord is one row of the expense save payload
type ExpenseSaveRecord struct {
	ExpenseDate  string  `json:"expense_date" validate:"required,apidate"`
	IngredientID int64   `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
}

// NewExpenseItem creates an empty editable row
func NewExpenseItem(id int64) ExpenseItem {
	return ExpenseItem{ID: id}
}

// WithQty returns the row with a new quantity and a recomputed total
func (e ExpenseItem) WithQty(qty *float64) ExpenseItem {
	e.Qty = qty
	e.Total = ComputeRowTotal(e.Qty, e.Price)
	return e
}

// WithPrice returns the row with a new unit price and a recomputed total
func (e ExpenseItem) WithPrice(price *float64) ExpenseItem {
	e.Price = price
	e.Total = ComputeRowTotal(e.Qty, e.Price)
	return e
}

// ComputeRowTotal returns qty × price rounded to 2 decimals.
// Missing or non-finite operands count as zero.
func ComputeRowTotal(qty, price *float64) float64 {
	q := decimal.NewFromFloat(finiteOrZero(qty))
	p := decimal.NewFromFloat(finiteOrZero(price))
	total, _ := q.Mul(p).Round(2).Float64()
	return total
}

// ComputeTotalCost sums the row totals, rounded to 2 decimals
func ComputeTotalCost(items []ExpenseItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		if math.IsNaN(it.Total) || math.IsInf(it.Total, 0) {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(it.Total))
	}
	total, _ := sum.Round(2).Float64()
	return total
}

func finiteOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}

// ParseExpenses decodes an upstream expense list. Every parsed row is persisted.
func ParseExpenses(body []byte) ([]ExpenseItem, error) {
	root, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}

	rows := rowsOf(root)
	items := make([]ExpenseItem, 0, len(rows))
	var nextID int64 = 1
	for _, r := range rows {
		item := ExpenseItem{Persisted: true}
		if id, ok := ExpenseIngredientIDProbe.PickNumber(r); ok {
			v := int64(id)
			item.IngredientID = &v
		}
		if qty, ok := QuantityProbe.PickNumber(r); ok {
			item.Qty = &qty
		}
		if price, ok := UnitPriceProbe.PickNumber(r); ok {
			item.Price = &price
		}
		item.Total = ComputeRowTotal(item.Qty, item.Price)
		item.Ingredient, _ = ExpenseIngredientNameProbe.PickString(r)

		if id, ok := ExpenseIDProbe.PickNumber(r); ok {
			item.ID = int64(id)
		} else if id, ok := RowIDProbe.PickNumber(r); ok {
			item.ID = int64(id)
		} else {
			item.ID = nextID
			nextID++
		}
		items = append(items, item)
	}
	return items, nil
}

// BuildExpensePayload builds the save payload for day. Persisted rows are
// skipped, and so is any row missing an ingredient id, quantity or price.
func BuildExpensePayload(items []ExpenseItem, day time.Time) []ExpenseSaveRecord {
	date := FormatAPIDate(day)
	payload := make([]ExpenseSaveRecord, 0, len(items))
	for _, it := range items {
		if it.Persisted {
			continue
		}
		if it.IngredientID == nil || !finite(it.Qty) || !finite(it.Price) {
			continue
		}
		payload = append(payload, ExpenseSaveRecord{
			ExpenseDate:  date,
			IngredientID: *it.IngredientID,
			Quantity:     *it.Qty,
			UnitPrice:    *it.Price,
		})
	}
	return payload
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// ParseAmount coerces user input into a quantity or price.
// Blank or non-numeric input yields nil; a decimal comma is accepted.
func ParseAmount(raw string) *float64 {
	s := strings.Replace(strings.TrimSpace(raw), ",", ".", 1)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseIngredientID coerces user input into an ingredient id.
// Blank, non-numeric or fractional input yields nil.
func ParseIngredientID(raw string) *int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil
	}
	v := int64(f)
	return &v
}
