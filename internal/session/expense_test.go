package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/reconcile"
)

// MockExpenseAPI mocks the ExpenseAPI interface
type MockExpenseAPI struct {
	mock.Mock
}

func (m *MockExpenseAPI) FetchExpenses(ctx context.Context, day time.Time) ([]reconcile.ExpenseItem, error) {
	args := m.Called(ctx, day)
	items, _ := args.Get(0).([]reconcile.ExpenseItem)
	return items, args.Error(1)
}

func (m *MockExpenseAPI) SaveExpenses(ctx context.Context, records []reconcile.ExpenseSaveRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockExpenseAPI) FetchIngredients(ctx context.Context) ([]reconcile.IngredientOption, error) {
	args := m.Called(ctx)
	options, _ := args.Get(0).([]reconcile.IngredientOption)
	return options, args.Error(1)
}

func ptr[T any](v T) *T { return &v }

func persistedRows() []reconcile.ExpenseItem {
	return []reconcile.ExpenseItem{
		{ID: 10, IngredientID: ptr(int64(3)), Qty: ptr(2.0), Price: ptr(1.25), Total: 2.5, Persisted: true},
		{ID: 11, Ingredient: "Oil", IngredientID: ptr(int64(4)), Qty: ptr(1.0), Price: ptr(4.0), Total: 4, Persisted: true},
	}
}

func TestExpenseSheet_LoadAndNormalize(t *testing.T) {
	api := new(MockExpenseAPI)
	api.On("FetchExpenses", mock.Anything, testDay).Return(persistedRows(), nil)
	api.On("FetchIngredients", mock.Anything).Return([]reconcile.IngredientOption{
		{ID: "3", Name: "Rice"},
		{ID: "4", Name: "Cooking Oil"},
	}, nil)
	sheet := NewExpenseSheet(api, testDay, zap.NewNop())

	require.NoError(t, sheet.Load(context.Background()))
	require.NoError(t, sheet.LoadIngredients(context.Background()))

	snap := sheet.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "Rice", snap.Items[0].Ingredient)
	assert.Equal(t, "Cooking Oil", snap.Items[1].Ingredient)
	assert.Equal(t, 6.5, snap.TotalCost)
	assert.Len(t, snap.Ingredients, 2)
	api.AssertExpectations(t)
}

func TestExpenseSheet_PersistedRowsAreReadOnly(t *testing.T) {
	api := new(MockExpenseAPI)
	api.On("FetchExpenses", mock.Anything, testDay).Return(persistedRows(), nil)
	sheet := NewExpenseSheet(api, testDay, zap.NewNop())
	require.NoError(t, sheet.Load(context.Background()))

	assert.ErrorIs(t, sheet.SetQty(10, "5"), ErrReadOnly)
	assert.ErrorIs(t, sheet.SetIngredient(11, "x"), ErrReadOnly)
	assert.ErrorIs(t, sheet.Delete(10), ErrReadOnly)
	assert.ErrorIs(t, sheet.SetPrice(99, "1"), ErrNotFound)
}

func TestExpenseSheet_EditNewRow(t *testing.T) {
	api := new(MockExpenseAPI)
	api.On("FetchExpenses", mock.Anything, testDay).Return(persistedRows(), nil)
	sheet := NewExpenseSheet(api, testDay, zap.NewNop())
	require.NoError(t, sheet.Load(context.Background()))

	id := sheet.Add()
	assert.Equal(t, int64(12), id)

	require.NoError(t, sheet.SetQty(id, "3"))
	require.NoError(t, sheet.SetPrice(id, "2,5"))
	require.NoError(t, sheet.SelectIngredient(id, reconcile.IngredientOption{ID: "7", Name: "Salt"}))

	snap := sheet.Snapshot()
	require.Len(t, snap.Items, 3)
	row := snap.Items[0]
	assert.Equal(t, id, row.ID)
	assert.Equal(t, "Salt", row.Ingredient)
	assert.Equal(t, int64(7), *row.IngredientID)
	assert.Equal(t, 7.5, row.Total)
	assert.Equal(t, 14.0, sheet.TotalCost())

	require.NoError(t, sheet.SetIngredient(id, "Sea salt"))
	assert.Nil(t, sheet.Snapshot().Items[0].IngredientID)

	require.NoError(t, sheet.SetIngredientID(id, "8"))
	assert.Equal(t, int64(8), *sheet.Snapshot().Items[0].IngredientID)

	require.NoError(t, sheet.SetQty(id, ""))
	assert.Equal(t, 0.0, sheet.Snapshot().Items[0].Total)

	require.NoError(t, sheet.Delete(id))
	assert.Len(t, sheet.Snapshot().Items, 2)
}

func TestExpenseSheet_AddOnEmptySheet(t *testing.T) {
	sheet := NewExpenseSheet(new(MockExpenseAPI), testDay, zap.NewNop())

	assert.Equal(t, int64(1), sheet.Add())
	assert.Equal(t, int64(2), sheet.Add())
	assert.Equal(t, int64(2), sheet.Snapshot().Items[0].ID)
}

func TestExpenseSheet_Save(t *testing.T) {
	api := new(MockExpenseAPI)
	api.On("FetchExpenses", mock.Anything, testDay).Return(persistedRows(), nil)
	api.On("SaveExpenses", mock.Anything, []reconcile.ExpenseSaveRecord{
		{ExpenseDate: "10/05/2025", IngredientID: 7, Quantity: 3, UnitPrice: 2.5},
	}).Return(nil)
	sheet := NewExpenseSheet(api, testDay, zap.NewNop())
	require.NoError(t, sheet.Load(context.Background()))

	assert.ErrorIs(t, sheet.Save(context.Background()), ErrNothingToSave)

	complete := sheet.Add()
	require.NoError(t, sheet.SetIngredientID(complete, "7"))
	require.NoError(t, sheet.SetQty(complete, "3"))
	require.NoError(t, sheet.SetPrice(complete, "2.5"))
	incomplete := sheet.Add()
	require.NoError(t, sheet.SetQty(incomplete, "1"))

	require.NoError(t, sheet.Save(context.Background()))

	api.AssertNumberOfCalls(t, "FetchExpenses", 2)
	api.AssertExpectations(t)
}

func TestExpenseSheet_SaveFailure(t *testing.T) {
	api := new(MockExpenseAPI)
	api.On("SaveExpenses", mock.Anything, mock.Anything).Return(errors.New("upstream 500"))
	sheet := NewExpenseSheet(api, testDay, zap.NewNop())

	id := sheet.Add()
	require.NoError(t, sheet.SetIngredientID(id, "1"))
	require.NoError(t, sheet.SetQty(id, "1"))
	require.NoError(t, sheet.SetPrice(id, "1"))

	err := sheet.Save(context.Background())

	require.Error(t, err)
	assert.Len(t, sheet.Snapshot().Items, 1, "unsaved rows survive a failed save")
	api.AssertNotCalled(t, "FetchExpenses", mock.Anything, mock.Anything)
}

func TestExpenseSheet_LoadError(t *testing.T) {
	api := new(MockExpenseAPI)
	api.On("FetchExpenses", mock.Anything, testDay).Return(nil, errors.New("timeout"))
	sheet := NewExpenseSheet(api, testDay, zap.NewNop())
	sheet.Add()

	require.Error(t, sheet.Load(context.Background()))

	snap := sheet.Snapshot()
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Empty(t, snap.Items)
}

func TestExpenseSheet_IngredientsFailure(t *testing.T) {
	api := new(MockExpenseAPI)
	api.On("FetchIngredients", mock.Anything).Return(nil, errors.New("forbidden"))
	sheet := NewExpenseSheet(api, testDay, zap.NewNop())

	assert.Error(t, sheet.LoadIngredients(context.Background()))
	assert.Empty(t, sheet.Snapshot().Ingredients)
}
