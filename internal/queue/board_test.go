package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-queue/internal/models"
)

func TestNewRouteValidation(t *testing.T) {
	_, err := NewRoute(nil)
	assert.Error(t, err)

	_, err = NewRoute([]models.Station{
		{ID: 1, DisplayNumber: 1, SequenceOrder: 1},
		{ID: 2, DisplayNumber: 1, SequenceOrder: 2},
	})
	assert.ErrorContains(t, err, "display number")

	_, err = NewRoute([]models.Station{
		{ID: 1, DisplayNumber: 1, SequenceOrder: 1},
		{ID: 2, DisplayNumber: 2, SequenceOrder: 1},
	})
	assert.ErrorContains(t, err, "sequence order")

	r, err := NewRoute([]models.Station{
		{ID: 7, DisplayNumber: 3, SequenceOrder: 30},
		{ID: 5, DisplayNumber: 1, SequenceOrder: 10},
		{ID: 6, DisplayNumber: 2, SequenceOrder: 20},
	})
	require.NoError(t, err)
	assert.True(t, r.IsFirst(5))

	next, ok := r.Next(5)
	require.True(t, ok)
	assert.Equal(t, int64(6), next.ID)
	_, ok = r.Next(7)
	assert.False(t, ok)

	s, ok := r.ByDisplayNumber(3)
	require.True(t, ok)
	assert.Equal(t, int64(7), s.ID)
	assert.Equal(t, -1, r.Order(nil))
}

func TestBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.enqueue(t, models.PriorityNormal)
	f.enqueue(t, models.PriorityNormal)
	c := f.enqueue(t, models.PriorityUrgent)

	_, err := f.ctl.CallNext(ctx, 10, "desk")
	require.NoError(t, err)

	board, err := f.ctl.Board(ctx)
	require.NoError(t, err)
	require.Len(t, board.Stations, 3)

	acc := board.Stations[0]
	require.Len(t, acc.Serving, 1)
	assert.Equal(t, c.QueueNumber, acc.Serving[0].QueueNumber)
	assert.Equal(t, 2, acc.WaitingCount)
	assert.Equal(t, []int64{1, 2}, acc.NextNumbers)

	_, err = f.ctl.CompleteService(ctx, 10, c.ID, "")
	require.NoError(t, err)
	_, err = f.ctl.CallSpecific(ctx, 10, a.QueueNumber, "desk", false)
	require.NoError(t, err)

	board, err = f.ctl.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, board.Stations[0].WaitingCount)
	assert.Equal(t, 1, board.Stations[1].WaitingCount)
	assert.Equal(t, []int64{c.QueueNumber}, board.Stations[1].NextNumbers)
}

func TestReportAndArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done := f.enqueue(t, models.PriorityUrgent)
	gone := f.enqueue(t, models.PriorityNormal)
	f.enqueue(t, models.PriorityNormal)

	for _, st := range []int64{10, 20, 30} {
		_, err := f.ctl.CallSpecific(ctx, st, done.QueueNumber, "staff", false)
		require.NoError(t, err)
		f.clock.Advance(2 * time.Minute)
		_, err = f.ctl.CompleteService(ctx, st, done.ID, "")
		require.NoError(t, err)
	}

	_, err := f.ctl.CallSpecific(ctx, 10, gone.QueueNumber, "desk", false)
	require.NoError(t, err)
	f.recallN(t, 10, gone.QueueNumber, 3)
	_, err = f.ctl.Cancel(ctx, gone.ID)
	require.NoError(t, err)

	rep, err := f.ctl.Report(ctx, f.ctl.Today())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Registered)
	assert.Equal(t, 1, rep.Urgent)
	assert.Equal(t, 1, rep.Completed)
	assert.Equal(t, 1, rep.Cancelled)
	assert.Equal(t, 1, rep.Active)
	require.Len(t, rep.Stations, 3)
	assert.Equal(t, 2, rep.Stations[0].Called)
	assert.Equal(t, 1, rep.Stations[0].Completed)
	assert.Equal(t, 1, rep.Stations[0].Cancelled)
	assert.Equal(t, 3, rep.Stations[0].Recalls)
	assert.InDelta(t, 120.0, rep.Stations[1].AvgServiceSeconds, 0.001)

	n, err := f.ctl.Archive(ctx, f.ctl.Today())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.ctl.Archive(ctx, f.ctl.Today())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "archiving twice adds nothing")

	arch, ok := f.store.Archived(done.ID)
	require.True(t, ok)
	assert.Len(t, arch.Visits, 3)

	live, err := f.ctl.Entry(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryCancelled, live.Entry.Status, "live record is kept")
}

func TestReportMeasuresServiceFromStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.enqueue(t, models.PriorityNormal)

	_, err := f.ctl.CallNext(ctx, 10, "desk")
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	_, err = f.ctl.StartService(ctx, 10, e.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.ctl.CompleteService(ctx, 10, e.ID, "")
	require.NoError(t, err)

	rep, err := f.ctl.Report(ctx, f.ctl.Today())
	require.NoError(t, err)
	assert.InDelta(t, 60.0, rep.Stations[0].AvgServiceSeconds, 0.001)
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e, err := s.CreateEntry(ctx, "2026-03-01", "p", models.PriorityNormal, time.Now())
	require.NoError(t, err)

	station := int64(10)
	err = s.Atomically(ctx, func(tx Tx) error {
		if _, err := tx.OpenVisit(ctx, models.StationVisit{QueueID: e.ID, StationID: station}); err != nil {
			return err
		}
		if err := tx.AdvanceStation(ctx, e.ID, &station); err != nil {
			return err
		}
		return ErrNoEligibleEntry
	})
	assert.ErrorIs(t, err, ErrNoEligibleEntry)

	visits, err := s.VisitsOn(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Empty(t, visits)
	entries, err := s.EntriesOn(ctx, "2026-03-01")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].CurrentStationID)
}

func TestMemoryStoreOpenVisitConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e, err := s.CreateEntry(ctx, "2026-03-01", "p", models.PriorityNormal, time.Now())
	require.NoError(t, err)

	err = s.Atomically(ctx, func(tx Tx) error {
		if _, err := tx.OpenVisit(ctx, models.StationVisit{QueueID: e.ID, StationID: 1}); err != nil {
			return err
		}
		_, err := tx.OpenVisit(ctx, models.StationVisit{QueueID: e.ID, StationID: 1})
		return err
	})
	assert.ErrorIs(t, err, ErrConflict)
}
