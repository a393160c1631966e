package reconcile

import (
	"strconv"
	"strings"
)

// IngredientOption is one entry of the ingredient master list
type IngredientOption struct {
	// ID is the upstream id in string form; empty when the row had none
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// ParseIngredientOptions decodes the master list. Rows without a name are dropped.
func ParseIngredientOptions(body []byte) ([]IngredientOption, error) {
	root, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}

	rows := rowsOf(root)
	options := make([]IngredientOption, 0, len(rows))
	for _, r := range rows {
		name, ok := IngredientNameProbe.PickString(r)
		if !ok {
			continue
		}
		id, _ := IngredientIDProbe.PickID(r)
		options = append(options, IngredientOption{ID: id, Name: name})
	}
	return options, nil
}

// IngredientIndex maps ingredient id to name
func IngredientIndex(options []IngredientOption) map[string]string {
	index := make(map[string]string, len(options))
	for _, opt := range options {
		if opt.ID != "" {
			index[opt.ID] = opt.Name
		}
	}
	return index
}

// IngredientName returns the row's own name, falling back to the master list
func IngredientName(item ExpenseItem, options []IngredientOption) string {
	if strings.TrimSpace(item.Ingredient) != "" {
		return item.Ingredient
	}
	if item.IngredientID == nil {
		return ""
	}
	return IngredientIndex(options)[formatID(*item.IngredientID)]
}

// NormalizeIngredientNames rewrites row names from the master list by id.
// The input slice is not modified; changed reports whether any name differs.
func NormalizeIngredientNames(items []ExpenseItem, options []IngredientOption) (out []ExpenseItem, changed bool) {
	if len(options) == 0 {
		return items, false
	}
	index := IngredientIndex(options)
	out = make([]ExpenseItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.IngredientID == nil {
			continue
		}
		if name, ok := index[formatID(*it.IngredientID)]; ok && name != "" && name != it.Ingredient {
			out[i].Ingredient = name
			changed = true
		}
	}
	if !changed {
		return items, false
	}
	return out, true
}

// MatchIngredient finds the option whose name equals name, ignoring case
func MatchIngredient(options []IngredientOption, name string) (IngredientOption, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return IngredientOption{}, false
	}
	for _, opt := range options {
		if strings.ToLower(opt.Name) == needle {
			return opt, true
		}
	}
	return IngredientOption{}, false
}

// FilterIngredients returns the options whose name contains query, ignoring case.
// An empty query returns every option.
func FilterIngredients(options []IngredientOption, query string) []IngredientOption {
	if query == "" {
		return options
	}
	q := strings.ToLower(query)
	var out []IngredientOption
	for _, opt := range options {
		if strings.Contains(strings.ToLower(opt.Name), q) {
			out = append(out, opt)
		}
	}
	return out
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
