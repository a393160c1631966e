package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIngredientOptions(t *testing.T) {
	body := []byte(`{"items":[
		{"ingredient_id":3,"name":"Rice"},
		{"ID":"A-9","DESCRIPTION":"Lentils"},
		{"code":12.5,"title":"Oil"},
		{"ingredient_id":4},
		{"name":"Salt"}
	]}`)

	options, err := ParseIngredientOptions(body)
	require.NoError(t, err)

	assert.Equal(t, []IngredientOption{
		{ID: "3", Name: "Rice"},
		{ID: "A-9", Name: "Lentils"},
		{ID: "12.5", Name: "Oil"},
		{ID: "", Name: "Salt"},
	}, options)

	bare, err := ParseIngredientOptions([]byte(`[{"id":1,"ingredient_name":"Sugar"}]`))
	require.NoError(t, err)
	assert.Equal(t, []IngredientOption{{ID: "1", Name: "Sugar"}}, bare)
}

func TestIngredientName(t *testing.T) {
	options := []IngredientOption{{ID: "3", Name: "Rice"}}

	assert.Equal(t, "Basmati", IngredientName(ExpenseItem{Ingredient: "Basmati", IngredientID: i64(3)}, options))
	assert.Equal(t, "Rice", IngredientName(ExpenseItem{IngredientID: i64(3)}, options))
	assert.Equal(t, "", IngredientName(ExpenseItem{IngredientID: i64(9)}, options))
	assert.Equal(t, "", IngredientName(ExpenseItem{}, options))
}

func TestNormalizeIngredientNames(t *testing.T) {
	options := []IngredientOption{{ID: "3", Name: "Rice"}, {ID: "4", Name: "Oil"}}
	items := []ExpenseItem{
		{ID: 1, IngredientID: i64(3), Ingredient: "rice (old)"},
		{ID: 2, IngredientID: i64(4), Ingredient: "Oil"},
		{ID: 3, Ingredient: "Typed"},
	}

	out, changed := NormalizeIngredientNames(items, options)
	assert.True(t, changed)
	assert.Equal(t, "Rice", out[0].Ingredient)
	assert.Equal(t, "Oil", out[1].Ingredient)
	assert.Equal(t, "Typed", out[2].Ingredient)
	assert.Equal(t, "rice (old)", items[0].Ingredient, "input must not be modified")

	same, changed := NormalizeIngredientNames(out, options)
	assert.False(t, changed)
	assert.Equal(t, out, same)

	_, changed = NormalizeIngredientNames(items, nil)
	assert.False(t, changed)
}

func TestMatchAndFilterIngredients(t *testing.T) {
	options := []IngredientOption{{ID: "1", Name: "Rice"}, {ID: "2", Name: "Brown Rice"}, {ID: "3", Name: "Oil"}}

	opt, ok := MatchIngredient(options, " rice ")
	require.True(t, ok)
	assert.Equal(t, "1", opt.ID)

	_, ok = MatchIngredient(options, "ric")
	assert.False(t, ok)

	assert.Len(t, FilterIngredients(options, "RICE"), 2)
	assert.Len(t, FilterIngredients(options, ""), 3)
	assert.Empty(t, FilterIngredients(options, "salt"))
}
