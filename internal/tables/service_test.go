package tables_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-pos/internal/apperr"
	"ms-pos/internal/database"
	"ms-pos/internal/events"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/tables"
	tabledb "ms-pos/internal/tables/db"
)

type recorder struct {
	events []models.Event
}

func (r *recorder) Notify(_ context.Context, e models.Event) {
	r.events = append(r.events, e)
}

func newService(t *testing.T, n events.Notifier) *tables.TableService {
	return tables.NewTableService(&tabledb.DB{Bun: database.NewTestDB(t)}, n, logger.NewConsoleLogger(io.Discard))
}

var (
	ctx    = context.Background()
	waiter = models.Actor{ID: "w1", Role: models.RoleWaiter}
	other  = models.Actor{ID: "w2", Role: models.RoleWaiter}
)

func TestCreateValidatesAndRejectsDuplicates(t *testing.T) {
	s := newService(t, events.Nop{})

	_, err := s.Create(ctx, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	tbl, err := s.Create(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyFree, tbl.Status())

	_, err = s.Create(ctx, 7)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestMarkOccupiedAndFree(t *testing.T) {
	rec := &recorder{}
	s := newService(t, rec)
	tbl, err := s.Create(ctx, 1)
	require.NoError(t, err)

	changed, err := s.MarkOccupied(ctx, tbl.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.MarkOccupied(ctx, tbl.ID)
	require.NoError(t, err)
	assert.False(t, changed, "repeat is a no-op")

	changed, err = s.MarkFree(ctx, tbl.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.MarkFree(ctx, tbl.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = s.MarkOccupied(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = s.MarkFree(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	for _, e := range rec.events {
		assert.Equal(t, models.EventTableUpdated, e.Type)
		assert.Equal(t, []string{models.ChannelTables}, e.Channels)
	}
	assert.Len(t, rec.events, 3)
}

func TestWaiterAttendance(t *testing.T) {
	s := newService(t, events.Nop{})
	tbl, err := s.Create(ctx, 2)
	require.NoError(t, err)

	got, err := s.AssignWaiter(ctx, tbl.ID, waiter)
	require.NoError(t, err)
	assert.True(t, got.AssignedTo("w1"))
	assert.Equal(t, models.AttendanceAttending, got.WaiterAttendance)
	assert.Equal(t, models.OccupancyFree, got.Status(), "attendance does not touch order occupancy")

	_, err = s.AssignWaiter(ctx, tbl.ID, other)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = s.ReleaseWaiter(ctx, tbl.ID, other)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	err = s.Delete(ctx, tbl.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got, err = s.ReleaseWaiter(ctx, tbl.ID, waiter)
	require.NoError(t, err)
	assert.Nil(t, got.WaiterID)

	_, err = s.AssignWaiter(ctx, "missing", waiter)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, s.Delete(ctx, tbl.ID))
	_, err = s.Get(ctx, tbl.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOrderOccupancySurvivesWaiterRelease(t *testing.T) {
	s := newService(t, events.Nop{})
	tbl, err := s.Create(ctx, 3)
	require.NoError(t, err)

	_, err = s.AssignWaiter(ctx, tbl.ID, waiter)
	require.NoError(t, err)
	_, err = s.MarkOccupied(ctx, tbl.ID)
	require.NoError(t, err)

	got, err := s.ReleaseWaiter(ctx, tbl.ID, waiter)
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyOccupied, got.Status())
}

func TestRenumber(t *testing.T) {
	s := newService(t, events.Nop{})
	a, err := s.Create(ctx, 10)
	require.NoError(t, err)
	_, err = s.Create(ctx, 11)
	require.NoError(t, err)

	_, err = s.Renumber(ctx, a.ID, 11)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got, err := s.Renumber(ctx, a.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Number)

	_, err = s.Renumber(ctx, "missing", 13)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 11, list[0].Number)
}

func TestConcurrentAssignWaiterHasOneWinner(t *testing.T) {
	s := newService(t, events.Nop{})
	tbl, err := s.Create(ctx, 5)
	require.NoError(t, err)

	const waiters = 10
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AssignWaiter(ctx, tbl.ID, models.Actor{ID: fmt.Sprintf("w%d", i+10), Role: models.RoleWaiter})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	}
	assert.Equal(t, 1, wins)

	got, err := s.Get(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceAttending, got.WaiterAttendance)
}
