package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/canteen-ops/pkg/utils"
)

// InputDateLayout is the YYYY-MM-DD layout used by date pickers
const InputDateLayout = "2006-01-02"

var parseLayouts = []string{
	"1/2/2006",
	InputDateLayout,
	time.RFC3339,
}

// FormatAPIDate formats t as MM/DD/YYYY
func FormatAPIDate(t time.Time) string {
	return t.Format(utils.APIDateLayout)
}

// FormatInputDate formats t as YYYY-MM-DD
func FormatInputDate(t time.Time) string {
	return t.Format(InputDateLayout)
}

// ParseDate accepts MM/DD/YYYY (single-digit parts allowed), YYYY-MM-DD or RFC 3339
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// CanonicalAPIDate re-emits any accepted date representation as MM/DD/YYYY
func CanonicalAPIDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return FormatAPIDate(t), nil
}

// HumanLabel renders a header label, prefixing "Today" when day is today
func HumanLabel(day, now time.Time) string {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Today, " + now.Format("Jan 2, 2006")
	}
	return day.Format("Jan 2, 2006")
}
