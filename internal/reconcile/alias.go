// Package reconcile normalizes upstream payloads into stable local shapes and
// derives the display and aggregate values the clients work with. Everything
// here is a pure function over its inputs.
package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is one raw upstream row. Field names vary between data service
// views, so values are looked up through a Probe instead of struct tags.
type Record map[string]interface{}

// Probe is an ordered list of candidate field names. The first match wins.
type Probe []string

// Field-name aliases seen across the data service views
var (
	NameProbe = Probe{"emp_name", "EMP_NAME", "employee_name", "EMPLOYEE_NAME", "name", "Name", "EMPLOYEE", "employee"}
	DeptProbe = Probe{"dept_name", "DEPT_NAME", "department", "DEPARTMENT", "department_name", "DEPARTMENT_NAME", "dept"}

	AttendanceIDProbe  = Probe{"attendance_id", "ATTENDANCE_ID"}
	AttendanceDayProbe = Probe{"attendance_date", "ATTENDANCE_DATE"}
	EmpCodeProbe       = Probe{"emp_code", "EMP_CODE"}
	LunchProbe         = Probe{"is_taking_lunch", "IS_TAKING_LUNCH"}
	DinnerProbe        = Probe{"is_taking_dinner", "IS_TAKING_DINNER"}
	PaymentProbe       = Probe{"payment_status", "PAYMENT_STATUS"}

	ExpenseIngredientIDProbe = Probe{
		"ingredient_id", "INGREDIENT_ID",
		"ingredientid", "INGREDIENTID",
		"ing_id", "ING_ID",
		"ingcode", "INGCODE", "ing_code", "ING_CODE",
		"code", "CODE",
	}
	ExpenseIngredientNameProbe = Probe{
		"ingredient_name", "INGREDIENT_NAME",
		"ingredient", "INGREDIENT",
		"ing_name", "ING_NAME",
		"description", "DESCRIPTION",
		"name", "NAME",
		"title", "TITLE",
	}
	QuantityProbe  = Probe{"quantity", "qty", "QUANTITY"}
	UnitPriceProbe = Probe{"unit_price", "price", "UNIT_PRICE"}
	ExpenseIDProbe = Probe{"expense_id", "EXPENSE_ID"}
	RowIDProbe     = Probe{"id", "ID"}

	IngredientNameProbe = Probe{"name", "ingredient_name", "INGREDIENT_NAME", "description", "DESCRIPTION", "title", "TITLE"}
	IngredientIDProbe   = Probe{"ingredient_id", "id", "INGREDIENT_ID", "ID", "code", "CODE"}
)

// PickString returns the first non-blank string value, trimmed
func (p Probe) PickString(r Record) (string, bool) {
	for _, k := range p {
		if s, ok := r[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// PickNumber returns the first finite number, accepting numeric strings
func (p Probe) PickNumber(r Record) (float64, bool) {
	for _, k := range p {
		if n, ok := toNumber(r[k]); ok {
			return n, true
		}
	}
	return 0, false
}

// PickID returns the first string or number value in string form.
// Unlike PickString an empty string still counts as present.
func (p Probe) PickID(r Record) (string, bool) {
	for _, k := range p {
		switch v := r[k].(type) {
		case string:
			return v, true
		case json.Number:
			return v.String(), true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case int:
			return strconv.Itoa(v), true
		case int64:
			return strconv.FormatInt(v, 10), true
		}
	}
	return "", false
}

func toNumber(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// decodeJSON decodes a payload keeping numbers as json.Number
func decodeJSON(body []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return v, nil
}

// rowsOf extracts the row list from either {"items": [...]} or a bare array.
// Anything else yields no rows.
func rowsOf(root interface{}) []Record {
	var list []interface{}
	switch v := root.(type) {
	case map[string]interface{}:
		if items, ok := v["items"].([]interface{}); ok {
			list = items
		}
	case []interface{}:
		list = v
	}

	rows := make([]Record, 0, len(list))
	for _, raw := range list {
		obj, _ := raw.(map[string]interface{})
		if obj == nil {
			obj = map[string]interface{}{}
		}
		rows = append(rows, Record(obj))
	}
	return rows
}
