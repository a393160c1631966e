package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/reconcile"
)

type fetchCall struct {
	day    time.Time
	limit  int
	offset int
}

// fakeAttendanceAPI serves pages from a function and records calls
type fakeAttendanceAPI struct {
	mu     sync.Mutex
	fetch  func(call fetchCall) (*reconcile.AttendanceList, error)
	calls  []fetchCall
	saved  [][]reconcile.AttendanceSaveRecord
	saveFn func([]reconcile.AttendanceSaveRecord) error
}

func (f *fakeAttendanceAPI) FetchAttendance(ctx context.Context, day time.Time, limit, offset int) (*reconcile.AttendanceList, error) {
	call := fetchCall{day: day, limit: limit, offset: offset}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return f.fetch(call)
}

func (f *fakeAttendanceAPI) SaveAttendance(ctx context.Context, records []reconcile.AttendanceSaveRecord) error {
	f.mu.Lock()
	f.saved = append(f.saved, records)
	f.mu.Unlock()
	if f.saveFn != nil {
		return f.saveFn(records)
	}
	return nil
}

func (f *fakeAttendanceAPI) lastCall() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

var testDay = time.Date(2025, time.October, 5, 0, 0, 0, 0, time.Local)

const emp01Page = `{"items":[{"attendance_id":1,"emp_code":"EMP-01","is_taking_lunch":1,"is_taking_dinner":0,"payment_status":"Pending"}],"hasMore":false,"limit":25,"offset":0}`

func pageFromJSON(body string) func(fetchCall) (*reconcile.AttendanceList, error) {
	return func(call fetchCall) (*reconcile.AttendanceList, error) {
		return reconcile.ParseAttendanceList([]byte(body), call.limit, call.offset)
	}
}

func TestAttendanceBoard_EndToEnd(t *testing.T) {
	api := &fakeAttendanceAPI{fetch: pageFromJSON(emp01Page)}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())

	require.NoError(t, board.Load(context.Background()))

	snap := board.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	require.Len(t, snap.List.Items, 1)
	item := snap.List.Items[0]
	assert.True(t, item.Lunch)
	assert.False(t, item.Dinner)
	assert.Equal(t, "01", item.Initials)
	assert.Equal(t, reconcile.UnknownLabel, item.Name)
	assert.Equal(t, 1, snap.List.LunchCount)
	assert.Equal(t, 0, snap.List.DinnerCount)
	assert.Equal(t, fetchCall{day: testDay, limit: 25, offset: 0}, api.lastCall())
}

func TestAttendanceBoard_ToggleKeepsCounts(t *testing.T) {
	api := &fakeAttendanceAPI{fetch: pageFromJSON(`{"items":[
		{"attendance_id":1,"emp_code":"A","is_taking_lunch":1,"is_taking_dinner":0},
		{"attendance_id":2,"emp_code":"B","is_taking_lunch":0,"is_taking_dinner":0}
	]}`)}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())
	require.NoError(t, board.Load(context.Background()))

	require.NoError(t, board.Toggle(2, reconcile.Lunch, true))
	require.NoError(t, board.Toggle(1, reconcile.Dinner, true))
	assert.True(t, board.AllOn(reconcile.Lunch))
	assert.False(t, board.AllOn(reconcile.Dinner))

	board.ToggleAll(reconcile.Dinner, true)
	snap := board.Snapshot()
	assert.Equal(t, 2, snap.List.LunchCount)
	assert.Equal(t, 2, snap.List.DinnerCount)

	board.ToggleAll(reconcile.Lunch, false)
	snap = board.Snapshot()
	assert.Equal(t, 0, snap.List.LunchCount)
	lunch, dinner := reconcile.CountMeals(snap.List.Items)
	assert.Equal(t, snap.List.LunchCount, lunch)
	assert.Equal(t, snap.List.DinnerCount, dinner)

	err := board.Toggle(99, reconcile.Lunch, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttendanceBoard_Pagination(t *testing.T) {
	api := &fakeAttendanceAPI{}
	api.fetch = func(call fetchCall) (*reconcile.AttendanceList, error) {
		return &reconcile.AttendanceList{
			Items:   []reconcile.AttendanceListItem{{ID: int64(call.offset + 1)}},
			HasMore: true,
			Limit:   call.limit,
			Offset:  call.offset,
		}, nil
	}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, board.Prev(ctx))
	assert.Empty(t, api.calls, "prev on the first page is a no-op")

	require.NoError(t, board.Load(ctx))
	require.NoError(t, board.Next(ctx))
	require.NoError(t, board.Next(ctx))
	assert.Equal(t, 50, api.lastCall().offset)

	require.NoError(t, board.Next(ctx))
	assert.Equal(t, 75, api.lastCall().offset)

	require.NoError(t, board.Prev(ctx))
	assert.Equal(t, 50, api.lastCall().offset)
	require.NoError(t, board.Prev(ctx))
	assert.Equal(t, 25, api.lastCall().offset)

	require.NoError(t, board.SetDate(ctx, testDay.AddDate(0, 0, 1)))
	assert.Equal(t, fetchCall{day: testDay.AddDate(0, 0, 1), limit: 25, offset: 0}, api.lastCall())
}

func TestAttendanceBoard_PaginationFollowsUpstream(t *testing.T) {
	api := &fakeAttendanceAPI{}
	api.fetch = func(call fetchCall) (*reconcile.AttendanceList, error) {
		return &reconcile.AttendanceList{
			Items:   []reconcile.AttendanceListItem{{ID: int64(call.offset + 1)}},
			HasMore: true,
			Limit:   10,
			Offset:  call.offset,
		}, nil
	}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, board.Load(ctx))
	assert.Equal(t, reconcile.Pagination{Limit: 10, Offset: 0, HasMore: true}, board.Snapshot().Pagination)

	require.NoError(t, board.Next(ctx))
	assert.Equal(t, fetchCall{day: testDay, limit: 10, offset: 10}, api.lastCall())
	assert.Equal(t, reconcile.Pagination{Limit: 10, Offset: 10, HasMore: true}, board.Snapshot().Pagination)

	require.NoError(t, board.Prev(ctx))
	assert.Equal(t, fetchCall{day: testDay, limit: 10, offset: 0}, api.lastCall())
}

func TestAttendanceBoard_NextWithoutMore(t *testing.T) {
	api := &fakeAttendanceAPI{fetch: pageFromJSON(emp01Page)}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())
	require.NoError(t, board.Load(context.Background()))

	require.NoError(t, board.Next(context.Background()))

	assert.Len(t, api.calls, 1)
}

func TestAttendanceBoard_LoadErrorEmptiesList(t *testing.T) {
	fail := false
	api := &fakeAttendanceAPI{}
	api.fetch = func(call fetchCall) (*reconcile.AttendanceList, error) {
		if fail {
			return nil, errors.New("upstream down")
		}
		return reconcile.ParseAttendanceList([]byte(emp01Page), call.limit, call.offset)
	}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())
	require.NoError(t, board.Load(context.Background()))

	fail = true
	err := board.Load(context.Background())

	require.Error(t, err)
	snap := board.Snapshot()
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Equal(t, "upstream down", snap.Error)
	assert.Empty(t, snap.List.Items)
	assert.Equal(t, 0, snap.List.LunchCount)
}

func TestAttendanceBoard_StaleLoadIsDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAttendanceAPI{}
	api.fetch = func(call fetchCall) (*reconcile.AttendanceList, error) {
		if call.day.Equal(testDay) {
			close(started)
			<-release
			return &reconcile.AttendanceList{Items: []reconcile.AttendanceListItem{{ID: 1}}}, nil
		}
		return &reconcile.AttendanceList{Items: []reconcile.AttendanceListItem{{ID: 2}}}, nil
	}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())

	errCh := make(chan error, 1)
	go func() { errCh <- board.Load(context.Background()) }()
	<-started

	require.NoError(t, board.SetDate(context.Background(), testDay.AddDate(0, 0, 1)))
	close(release)

	assert.ErrorIs(t, <-errCh, ErrStale)
	snap := board.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	require.Len(t, snap.List.Items, 1)
	assert.Equal(t, int64(2), snap.List.Items[0].ID)
}

func TestAttendanceBoard_Save(t *testing.T) {
	api := &fakeAttendanceAPI{fetch: pageFromJSON(emp01Page)}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())

	assert.ErrorIs(t, board.Save(context.Background()), ErrNothingToSave)

	require.NoError(t, board.Load(context.Background()))
	require.NoError(t, board.Toggle(1, reconcile.Dinner, true))
	require.NoError(t, board.Save(context.Background()))

	require.Len(t, api.saved, 1)
	assert.Equal(t, []reconcile.AttendanceSaveRecord{{
		AttendanceID:   1,
		EmpCode:        "EMP-01",
		AttendanceDate: "10/05/2025",
		IsTakingLunch:  1,
		IsTakingDinner: 1,
		PaymentStatus:  "Pending",
	}}, api.saved[0])
	assert.Len(t, api.calls, 2, "save reloads the page")
	assert.False(t, board.Snapshot().Saving)
}

func TestAttendanceBoard_SaveFailureKeepsEdits(t *testing.T) {
	api := &fakeAttendanceAPI{
		fetch:  pageFromJSON(emp01Page),
		saveFn: func([]reconcile.AttendanceSaveRecord) error { return errors.New("rejected") },
	}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())
	require.NoError(t, board.Load(context.Background()))
	require.NoError(t, board.Toggle(1, reconcile.Dinner, true))

	err := board.Save(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	snap := board.Snapshot()
	assert.True(t, snap.List.Items[0].Dinner)
	assert.Equal(t, 1, snap.List.DinnerCount)
	assert.Len(t, api.calls, 1)
}

func TestAttendanceBoard_SaveWhileSaving(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAttendanceAPI{fetch: pageFromJSON(emp01Page)}
	api.saveFn = func([]reconcile.AttendanceSaveRecord) error {
		close(started)
		<-release
		return nil
	}
	board := NewAttendanceBoard(api, testDay, zap.NewNop())
	require.NoError(t, board.Load(context.Background()))

	errCh := make(chan error, 1)
	go func() { errCh <- board.Save(context.Background()) }()
	<-started

	assert.ErrorIs(t, board.Save(context.Background()), ErrBusy)
	assert.True(t, board.Snapshot().Saving)
	close(release)
	assert.NoError(t, <-errCh)
}

func TestAttendanceBoard_SnapshotLabel(t *testing.T) {
	board := NewAttendanceBoard(&fakeAttendanceAPI{}, testDay, zap.NewNop())
	board.now = func() time.Time { return testDay.Add(9 * time.Hour) }

	assert.Equal(t, "Today, Oct 5, 2025", board.Snapshot().Label)
	assert.Equal(t, PhaseIdle, board.Snapshot().Phase)
}
