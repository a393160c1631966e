package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/reconcile"
)

func TestExporter_Expenses(t *testing.T) {
	e := NewExporter(zap.NewNop())
	day := time.Date(2025, time.October, 5, 0, 0, 0, 0, time.Local)
	id := int64(3)
	qty, price := 2.0, 12.5
	items := []reconcile.ExpenseItem{
		{ID: 1, IngredientID: &id, Qty: &qty, Price: &price, Total: 25, Persisted: true},
		{ID: 2, Ingredient: "Salt", Total: 0},
	}
	options := []reconcile.IngredientOption{{ID: "3", Name: "Rice"}}

	buf, err := e.Expenses(day, items, options)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	date, _ := f.GetCellValue("Expenses", "B1")
	assert.Equal(t, "10/05/2025", date)

	name, _ := f.GetCellValue("Expenses", "A4")
	assert.Equal(t, "Rice", name)
	total, _ := f.GetCellValue("Expenses", "E4")
	assert.Equal(t, "25", total)

	salt, _ := f.GetCellValue("Expenses", "A5")
	assert.Equal(t, "Salt", salt)
	emptyQty, _ := f.GetCellValue("Expenses", "C5")
	assert.Equal(t, "", emptyQty)

	grand, _ := f.GetCellValue("Expenses", "E7")
	assert.Equal(t, "25", grand)
}

func TestExporter_Attendance(t *testing.T) {
	e := NewExporter(zap.NewNop())
	day := time.Date(2025, time.October, 5, 0, 0, 0, 0, time.Local)
	list := &reconcile.AttendanceList{Items: []reconcile.AttendanceListItem{
		{ID: 1, EmpCode: "E1", Name: "Jane Doe", Dept: "Kitchen", Lunch: true, PaymentStatus: "paid"},
		{ID: 2, EmpCode: "E2", Name: "Unknown", Dept: "Unknown", Dinner: true},
	}}
	list.Recount()

	buf, err := e.Attendance(day, list)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Attendance")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 7)
	assert.Equal(t, []string{"E1", "Jane Doe", "Kitchen", "Yes", "No", "Paid"}, rows[3])
	assert.Equal(t, []string{"E2", "Unknown", "Unknown", "No", "Yes", "Pending"}, rows[4])

	lunch, _ := f.GetCellValue("Attendance", "D7")
	dinner, _ := f.GetCellValue("Attendance", "E7")
	assert.Equal(t, "1", lunch)
	assert.Equal(t, "1", dinner)
}

func TestFilename(t *testing.T) {
	day := time.Date(2025, time.October, 5, 0, 0, 0, 0, time.Local)
	assert.Equal(t, "expenses-2025-10-05.xlsx", Filename("expenses", day))
}
