package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/reconcile"
)

// AttendanceSnapshot is a copy of the board state
type AttendanceSnapshot struct {
	Phase      Phase
	Error      string
	Day        time.Time
	Label      string
	List       reconcile.AttendanceList
	Pagination reconcile.Pagination
	Saving     bool
}

// AttendanceBoard is the state of the attendance screen for one day
type AttendanceBoard struct {
	api    AttendanceAPI
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	day    time.Time
	limit  int
	offset int
	list   *reconcile.AttendanceList
	phase  Phase
	err    error
	saving bool
	gen    uint64
}

// NewAttendanceBoard creates a board for day with the default page size
func NewAttendanceBoard(api AttendanceAPI, day time.Time, logger *zap.Logger) *AttendanceBoard {
	return &AttendanceBoard{
		api:    api,
		logger: logger,
		now:    time.Now,
		day:    day,
		limit:  reconcile.DefaultLimit,
		list:   emptyAttendance(reconcile.DefaultLimit, 0),
		phase:  PhaseIdle,
	}
}

// Load fetches the current page. A response overtaken by a newer Load is
// dropped and ErrStale is returned.
func (b *AttendanceBoard) Load(ctx context.Context) error {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	day, limit, offset := b.day, b.limit, b.offset
	b.phase = PhaseLoading
	b.mu.Unlock()

	list, err := b.api.FetchAttendance(ctx, day, limit, offset)

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		b.logger.Debug("Dropping stale attendance page",
			zap.Uint64("generation", gen),
			zap.Uint64("latest", b.gen))
		return ErrStale
	}
	if err != nil {
		b.phase = PhaseError
		b.err = err
		b.list = emptyAttendance(limit, offset)
		b.logger.Error("Failed to load attendance",
			zap.String("date", reconcile.FormatAPIDate(day)),
			zap.Int("offset", offset),
			zap.Error(err))
		return err
	}

	b.phase = PhaseReady
	b.err = nil
	b.list = list
	// the upstream may cap or shift the page; navigate from what it returned
	if list.Limit > 0 {
		b.limit = list.Limit
	}
	if list.Offset >= 0 {
		b.offset = list.Offset
	}
	return nil
}

// SetDate switches to day, resets to the first page and reloads
func (b *AttendanceBoard) SetDate(ctx context.Context, day time.Time) error {
	b.mu.Lock()
	b.day = day
	b.offset = 0
	b.mu.Unlock()
	return b.Load(ctx)
}

// Next loads the following page. It is a no-op without hasMore.
func (b *AttendanceBoard) Next(ctx context.Context) error {
	b.mu.Lock()
	offset, ok := b.pagination().NextOffset()
	if ok {
		b.offset = offset
	}
	b.mu.Unlock()

	if !ok {
		return nil
	}
	return b.Load(ctx)
}

// Prev loads the previous page. It is a no-op on the first page.
func (b *AttendanceBoard) Prev(ctx context.Context) error {
	b.mu.Lock()
	offset, ok := b.pagination().PrevOffset()
	if ok {
		b.offset = offset
	}
	b.mu.Unlock()

	if !ok {
		return nil
	}
	return b.Load(ctx)
}

// pagination mirrors the last page the upstream returned
func (b *AttendanceBoard) pagination() reconcile.Pagination {
	return reconcile.Pagination{Limit: b.limit, Offset: b.offset, HasMore: b.list.HasMore}
}

// Toggle sets one meal flag on one row
func (b *AttendanceBoard) Toggle(id int64, meal reconcile.Meal, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.list.SetMeal(id, meal, on) {
		return fmt.Errorf("attendance %d: %w", id, ErrNotFound)
	}
	return nil
}

// ToggleAll sets one meal flag on every row of the page
func (b *AttendanceBoard) ToggleAll(meal reconcile.Meal, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.list.SetAll(meal, on)
}

// AllOn reports whether every row of a non-empty page has the meal
func (b *AttendanceBoard) AllOn(meal reconcile.Meal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.list.AllOn(meal)
}

// Save submits every row of the page and reloads it on success
func (b *AttendanceBoard) Save(ctx context.Context) error {
	b.mu.Lock()
	if b.saving || b.phase == PhaseLoading {
		b.mu.Unlock()
		return ErrBusy
	}
	if len(b.list.Items) == 0 {
		b.mu.Unlock()
		return ErrNothingToSave
	}
	payload := reconcile.BuildAttendancePayload(b.list.Items, b.day)
	b.saving = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.saving = false
		b.mu.Unlock()
	}()

	if err := b.api.SaveAttendance(ctx, payload); err != nil {
		b.logger.Error("Failed to save attendance", zap.Int("rows", len(payload)), zap.Error(err))
		return fmt.Errorf("failed to save attendance: %w", err)
	}
	b.logger.Info("Attendance saved", zap.Int("rows", len(payload)))

	return b.Load(ctx)
}

// Snapshot returns a copy of the current state
func (b *AttendanceBoard) Snapshot() AttendanceSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := *b.list
	list.Items = append([]reconcile.AttendanceListItem(nil), b.list.Items...)
	return AttendanceSnapshot{
		Phase:      b.phase,
		Error:      errString(b.err),
		Day:        b.day,
		Label:      reconcile.HumanLabel(b.day, b.now()),
		List:       list,
		Pagination: b.list.Pagination(),
		Saving:     b.saving,
	}
}

func emptyAttendance(limit, offset int) *reconcile.AttendanceList {
	return &reconcile.AttendanceList{
		Items:  []reconcile.AttendanceListItem{},
		Limit:  limit,
		Offset: offset,
	}
}
