package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/reconcile"
)

// ExpenseSnapshot is a copy of the sheet state
type ExpenseSnapshot struct {
	Phase       Phase
	Error       string
	Day         time.Time
	Label       string
	Items       []reconcile.ExpenseItem
	Ingredients []reconcile.IngredientOption
	TotalCost   float64
	Saving      bool
}

// ExpenseSheet is the daily expense screen. Rows loaded from upstream are
// read-only; only rows added locally are edited and submitted.
type ExpenseSheet struct {
	api    ExpenseAPI
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	day     time.Time
	items   []reconcile.ExpenseItem
	options []reconcile.IngredientOption
	phase   Phase
	err     error
	saving  bool
	gen     uint64
}

// NewExpenseSheet creates an empty sheet for day
func NewExpenseSheet(api ExpenseAPI, day time.Time, logger *zap.Logger) *ExpenseSheet {
	return &ExpenseSheet{
		api:    api,
		logger: logger,
		now:    time.Now,
		day:    day,
		items:  []reconcile.ExpenseItem{},
		phase:  PhaseIdle,
	}
}

// Load replaces the rows with the expenses recorded for the current day
func (s *ExpenseSheet) Load(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	day := s.day
	s.phase = PhaseLoading
	s.mu.Unlock()

	items, err := s.api.FetchExpenses(ctx, day)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrStale
	}
	if err != nil {
		s.phase = PhaseError
		s.err = err
		s.items = []reconcile.ExpenseItem{}
		s.logger.Error("Failed to load expenses",
			zap.String("date", reconcile.FormatAPIDate(day)),
			zap.Error(err))
		return err
	}

	s.items, _ = reconcile.NormalizeIngredientNames(items, s.options)
	s.phase = PhaseReady
	s.err = nil
	return nil
}

// LoadIngredients fetches the master list and renames rows from it
func (s *ExpenseSheet) LoadIngredients(ctx context.Context) error {
	options, err := s.api.FetchIngredients(ctx)
	if err != nil {
		s.logger.Warn("Failed to load ingredients", zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = options
	if items, changed := reconcile.NormalizeIngredientNames(s.items, options); changed {
		s.items = items
	}
	return nil
}

// SetDate switches to day and reloads
func (s *ExpenseSheet) SetDate(ctx context.Context, day time.Time) error {
	s.mu.Lock()
	s.day = day
	s.mu.Unlock()
	return s.Load(ctx)
}

// Add prepends an empty row and returns its local id
func (s *ExpenseSheet) Add() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	for _, it := range s.items {
		if it.ID > id {
			id = it.ID
		}
	}
	id++
	s.items = append([]reconcile.ExpenseItem{reconcile.NewExpenseItem(id)}, s.items...)
	return id
}

// Delete removes a locally added row
func (s *ExpenseSheet) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.editable(id)
	if err != nil {
		return err
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return nil
}

// SetIngredient sets a typed name. The ingredient id is cleared so a stale
// selection cannot be submitted under a new name.
func (s *ExpenseSheet) SetIngredient(id int64, name string) error {
	return s.update(id, func(it reconcile.ExpenseItem) reconcile.ExpenseItem {
		it.Ingredient = name
		it.IngredientID = nil
		return it
	})
}

// SelectIngredient sets name and id from a master list entry
func (s *ExpenseSheet) SelectIngredient(id int64, opt reconcile.IngredientOption) error {
	return s.update(id, func(it reconcile.ExpenseItem) reconcile.ExpenseItem {
		it.Ingredient = opt.Name
		it.IngredientID = reconcile.ParseIngredientID(opt.ID)
		return it
	})
}

// SetIngredientID sets the id from raw input; blank or non-numeric clears it
func (s *ExpenseSheet) SetIngredientID(id int64, raw string) error {
	return s.update(id, func(it reconcile.ExpenseItem) reconcile.ExpenseItem {
		it.IngredientID = reconcile.ParseIngredientID(raw)
		return it
	})
}

// SetQty sets the quantity from raw input and recomputes the row total
func (s *ExpenseSheet) SetQty(id int64, raw string) error {
	return s.update(id, func(it reconcile.ExpenseItem) reconcile.ExpenseItem {
		return it.WithQty(reconcile.ParseAmount(raw))
	})
}

// SetPrice sets the unit price from raw input and recomputes the row total
func (s *ExpenseSheet) SetPrice(id int64, raw string) error {
	return s.update(id, func(it reconcile.ExpenseItem) reconcile.ExpenseItem {
		return it.WithPrice(reconcile.ParseAmount(raw))
	})
}

// TotalCost is the sum of every row total, loaded rows included
func (s *ExpenseSheet) TotalCost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reconcile.ComputeTotalCost(s.items)
}

// Save submits the complete new rows and reloads the day on success
func (s *ExpenseSheet) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrBusy
	}
	payload := reconcile.BuildExpensePayload(s.items, s.day)
	if len(payload) == 0 {
		s.mu.Unlock()
		return ErrNothingToSave
	}
	s.saving = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	if err := s.api.SaveExpenses(ctx, payload); err != nil {
		s.logger.Error("Failed to save expenses", zap.Int("rows", len(payload)), zap.Error(err))
		return fmt.Errorf("failed to save expenses: %w", err)
	}
	s.logger.Info("Expenses saved", zap.Int("rows", len(payload)))

	return s.Load(ctx)
}

// Snapshot returns a copy of the current state
func (s *ExpenseSheet) Snapshot() ExpenseSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ExpenseSnapshot{
		Phase:       s.phase,
		Error:       errString(s.err),
		Day:         s.day,
		Label:       reconcile.HumanLabel(s.day, s.now()),
		Items:       append([]reconcile.ExpenseItem(nil), s.items...),
		Ingredients: append([]reconcile.IngredientOption(nil), s.options...),
		TotalCost:   reconcile.ComputeTotalCost(s.items),
		Saving:      s.saving,
	}
}

func (s *ExpenseSheet) update(id int64, fn func(reconcile.ExpenseItem) reconcile.ExpenseItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.editable(id)
	if err != nil {
		return err
	}
	s.items[i] = fn(s.items[i])
	return nil
}

// editable returns the index of a local row; caller holds mu
func (s *ExpenseSheet) editable(id int64) (int, error) {
	for i, it := range s.items {
		if it.ID != id {
			continue
		}
		if it.Persisted {
			return 0, fmt.Errorf("expense %d: %w", id, ErrReadOnly)
		}
		return i, nil
	}
	return 0, fmt.Errorf("expense %d: %w", id, ErrNotFound)
}
