package reconcile

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/garyjia/canteen-ops/pkg/utils"
)

// UnknownLabel is shown when no name or department alias is present
const UnknownLabel = "Unknown"

// paymentStatusMaxLen is the upstream PAYMENT_STATUS column width
const paymentStatusMaxLen = 10

// Meal selects the lunch or dinner flag
type Meal string

const (
	Lunch  Meal = "lunch"
	Dinner Meal = "dinner"
)

// ParseMeal parses "lunch" or "dinner", case-insensitively
func ParseMeal(s string) (Meal, error) {
	switch Meal(strings.ToLower(strings.TrimSpace(s))) {
	case Lunch:
		return Lunch, nil
	case Dinner:
		return Dinner, nil
	}
	return "", fmt.Errorf("unknown meal %q", s)
}

// AvatarPalette is the fixed, ordered avatar color set
var AvatarPalette = [16]string{
	"#ec4899", // pink
	"#ef4444", // red
	"#f97316", // orange
	"#f59e0b", // amber
	"#eab308", // yellow
	"#84cc16", // lime
	"#22c55e", // green
	"#10b981", // emerald
	"#14b8a6", // teal
	"#06b6d4", // cyan
	"#0ea5e9", // sky
	"#3b82f6", // blue
	"#6366f1", // indigo
	"#8b5cf6", // violet
	"#d946ef", // fuchsia
	"#f43f5e", // rose
}

// AttendanceRecord is the upstream attendance row
type AttendanceRecord struct {
	AttendanceID   int64  `json:"attendance_id"`
	AttendanceDate string `json:"attendance_date"`
	EmpCode        string `json:"emp_code"`
	IsTakingLunch  int    `json:"is_taking_lunch"`
	IsTakingDinner int    `json:"is_taking_dinner"`
	PaymentStatus  string `json:"payment_status"`
	EmpName        string `json:"emp_name,omitempty"`
	DeptName       string `json:"dept_name,omitempty"`
}

// AttendanceListItem is an attendance row prepared for display and editing.
// Lunch and Dinner are the editable state; the upstream 0|1 flags are not kept.
type AttendanceListItem struct {
	ID             int64  `json:"id"`
	AttendanceDate string `json:"attendance_date"`
	EmpCode        string `json:"emp_code"`
	PaymentStatus  string `json:"payment_status"`
	Name           string `json:"name"`
	Dept           string `json:"dept"`
	Initials       string `json:"initials"`
	AvatarColor    string `json:"avatarColor"`
	Lunch          bool   `json:"lunch"`
	Dinner         bool   `json:"dinner"`
}

// Meal returns the flag for m
func (it AttendanceListItem) Meal(m Meal) bool {
	if m == Dinner {
		return it.Dinner
	}
	return it.Lunch
}

// AttendanceList is one page of attendance with derived counts
type AttendanceList struct {
	Items       []AttendanceListItem `json:"items"`
	LunchCount  int                  `json:"lunchCount"`
	DinnerCount int                  `json:"dinnerCount"`
	HasMore     bool                 `json:"hasMore"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
	Count       int                  `json:"count"`
}

// Pagination returns the list's pagination state
func (l *AttendanceList) Pagination() Pagination {
	return Pagination{Limit: l.Limit, Offset: l.Offset, HasMore: l.HasMore}
}

// AttendanceSaveRecord is one row of the bulk save payload
type AttendanceSaveRecord struct {
	AttendanceID   int64  `json:"attendance_id"`
	EmpCode        string `json:"emp_code"`
	AttendanceDate string `json:"attendance_date" validate:"required,apidate"`
	IsTakingLunch  int    `json:"is_taking_lunch" validate:"oneof=0 1"`
	IsTakingDinner int    `json:"is_taking_dinner" validate:"oneof=0 1"`
	PaymentStatus  string `json:"payment_status" validate:"required,max=10"`
}

// ParseAttendanceRecord reads one raw row into an AttendanceRecord
func ParseAttendanceRecord(r Record) AttendanceRecord {
	rec := AttendanceRecord{}
	if id, ok := AttendanceIDProbe.PickNumber(r); ok {
		rec.AttendanceID = int64(id)
	}
	rec.AttendanceDate, _ = AttendanceDayProbe.PickString(r)
	rec.EmpCode, _ = EmpCodeProbe.PickString(r)
	rec.PaymentStatus, _ = PaymentProbe.PickString(r)
	if v, ok := LunchProbe.PickNumber(r); ok && v == 1 {
		rec.IsTakingLunch = 1
	}
	if v, ok := DinnerProbe.PickNumber(r); ok && v == 1 {
		rec.IsTakingDinner = 1
	}
	rec.EmpName, _ = NameProbe.PickString(r)
	rec.DeptName, _ = DeptProbe.PickString(r)
	return rec
}

// NewAttendanceListItem derives the display fields for a record
func NewAttendanceListItem(rec AttendanceRecord) AttendanceListItem {
	name := rec.EmpName
	initialsSource := name
	if name == "" {
		name = UnknownLabel
		initialsSource = rec.EmpCode
	}
	dept := rec.DeptName
	if dept == "" {
		dept = UnknownLabel
	}

	return AttendanceListItem{
		ID:             rec.AttendanceID,
		AttendanceDate: rec.AttendanceDate,
		EmpCode:        rec.EmpCode,
		PaymentStatus:  rec.PaymentStatus,
		Name:           name,
		Dept:           dept,
		Initials:       Initials(initialsSource),
		AvatarColor:    AvatarColor(rec.EmpCode),
		Lunch:          rec.IsTakingLunch == 1,
		Dinner:         rec.IsTakingDinner == 1,
	}
}

// ParseAttendanceList decodes an upstream attendance page.
// limit and offset are the requested values, used when the upstream omits them.
func ParseAttendanceList(body []byte, limit, offset int) (*AttendanceList, error) {
	root, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}
	obj, ok := root.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected attendance payload: not an object")
	}
	if _, ok := obj["items"].([]interface{}); !ok {
		return nil, fmt.Errorf("unexpected attendance payload: missing items array")
	}

	rows := rowsOf(obj)
	items := make([]AttendanceListItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, NewAttendanceListItem(ParseAttendanceRecord(r)))
	}

	list := &AttendanceList{
		Items:   items,
		HasMore: truthy(obj["hasMore"]),
		Limit:   limit,
		Offset:  offset,
		Count:   len(items),
	}
	meta := Record(obj)
	if v, ok := numberField(meta, "limit"); ok {
		list.Limit = v
	}
	if v, ok := numberField(meta, "offset"); ok {
		list.Offset = v
	}
	if v, ok := numberField(meta, "count"); ok {
		list.Count = v
	}
	list.Recount()
	return list, nil
}

// Recount derives LunchCount and DinnerCount from the current items.
// Counts are never adjusted in place.
func (l *AttendanceList) Recount() {
	l.LunchCount, l.DinnerCount = CountMeals(l.Items)
}

// CountMeals sums the lunch and dinner flags
func CountMeals(items []AttendanceListItem) (lunch, dinner int) {
	for _, it := range items {
		if it.Lunch {
			lunch++
		}
		if it.Dinner {
			dinner++
		}
	}
	return lunch, dinner
}

// SetMeal sets one row's flag and recounts. It reports whether id was found.
func (l *AttendanceList) SetMeal(id int64, m Meal, on bool) bool {
	found := false
	for i := range l.Items {
		if l.Items[i].ID != id {
			continue
		}
		found = true
		if m == Dinner {
			l.Items[i].Dinner = on
		} else {
			l.Items[i].Lunch = on
		}
	}
	l.Recount()
	return found
}

// SetAll sets the flag on every row and recounts
func (l *AttendanceList) SetAll(m Meal, on bool) {
	for i := range l.Items {
		if m == Dinner {
			l.Items[i].Dinner = on
		} else {
			l.Items[i].Lunch = on
		}
	}
	l.Recount()
}

// AllOn reports whether a non-empty list has the flag set on every row
func (l *AttendanceList) AllOn(m Meal) bool {
	if len(l.Items) == 0 {
		return false
	}
	for _, it := range l.Items {
		if !it.Meal(m) {
			return false
		}
	}
	return true
}

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// Initials derives two display letters from a name or an employee code
func Initials(nameOrCode string) string {
	parts := strings.Fields(nameOrCode)
	if len(parts) >= 2 {
		a := []rune(parts[0])[0]
		b := []rune(parts[1])[0]
		return strings.ToUpper(string([]rune{a, b}))
	}

	letters := []rune(nonAlphanumeric.ReplaceAllString(nameOrCode, ""))
	if len(letters) > 2 {
		letters = letters[len(letters)-2:]
	}
	if len(letters) == 0 {
		return "UN"
	}
	return strings.ToUpper(string(letters))
}

// AvatarColor maps a stable key onto the palette with a 32-bit rolling hash
func AvatarColor(key string) string {
	var hash int32
	for _, unit := range utf16.Encode([]rune(key)) {
		hash = hash*31 + int32(unit)
	}
	idx := int64(hash)
	if idx < 0 {
		idx = -idx
	}
	return AvatarPalette[idx%int64(len(AvatarPalette))]
}

// NormalizePaymentStatus maps a free-form status onto the values the
// upstream column accepts. Known prefixes win; otherwise the value is capped
// at the column width and defaults to Pending.
func NormalizePaymentStatus(status string) string {
	trimmed := strings.TrimSpace(status)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "paid"):
		return "Paid"
	case strings.HasPrefix(lower, "unpaid"):
		return "Unpaid"
	case strings.HasPrefix(lower, "pending"):
		return "Pending"
	}
	if capped := utils.Excerpt(trimmed, paymentStatusMaxLen); capped != "" {
		return capped
	}
	return "Pending"
}

// BuildAttendancePayload maps every row onto a save record for day
func BuildAttendancePayload(items []AttendanceListItem, day time.Time) []AttendanceSaveRecord {
	date := FormatAPIDate(day)
	payload := make([]AttendanceSaveRecord, 0, len(items))
	for _, it := range items {
		payload = append(payload, AttendanceSaveRecord{
			AttendanceID:   it.ID,
			EmpCode:        it.EmpCode,
			AttendanceDate: date,
			IsTakingLunch:  flag(it.Lunch),
			IsTakingDinner: flag(it.Dinner),
			PaymentStatus:  NormalizePaymentStatus(it.PaymentStatus),
		})
	}
	return payload
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// truthy follows loose JSON truthiness for flags like hasMore
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case nil:
		return false
	}
	if n, ok := toNumber(v); ok {
		return n != 0
	}
	return true
}

// numberField reads an integral number stored under key.
// Numeric strings do not count.
func numberField(r Record, key string) (int, bool) {
	if _, isString := r[key].(string); isString {
		return 0, false
	}
	n, ok := toNumber(r[key])
	if !ok || n != math.Trunc(n) {
		return 0, false
	}
	return int(n), true
}
