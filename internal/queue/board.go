package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"clinic-queue/internal/models"
)

// BoardItem is one row of a call screen.
type BoardItem struct {
	QueueID     int64              `json:"queue_id"`
	QueueNumber int64              `json:"queue_number"`
	Priority    models.Priority    `json:"priority"`
	Status      models.VisitStatus `json:"status"`
	RecallCount int                `json:"recall_count"`
	Silent      bool               `json:"silent"`
	CalledAt    time.Time          `json:"called_at"`
}

type StationBoard struct {
	Station      models.Station `json:"station"`
	Serving      []BoardItem    `json:"serving"`
	WaitingCount int            `json:"waiting_count"`
	NextNumbers  []int64        `json:"next_numbers"`
}

type Board struct {
	Day       string         `json:"day"`
	Stations  []StationBoard `json:"stations"`
	Timestamp time.Time      `json:"timestamp"`
}

const boardPreview = 5

// Waiting lists the entries callable at stationID, in the order CallNext
// would take them.
func (c *Controller) Waiting(ctx context.Context, stationID int64) ([]models.QueueEntry, error) {
	if _, ok := c.route.Station(stationID); !ok {
		return nil, ErrUnknownStation
	}

	out, err := c.store.Waiting(ctx, c.Today(), stationID, c.route.IsFirst(stationID))
	if err != nil {
		return nil, fmt.Errorf("waiting list: %w", err)
	}
	return out, nil
}

// Entry returns one entry and its visit history.
func (c *Controller) Entry(ctx context.Context, queueID int64) (models.ArchivedEntry, error) {
	var entry models.QueueEntry
	err := c.store.Atomically(ctx, func(tx Tx) error {
		var err error
		entry, err = tx.Entry(ctx, queueID)
		return err
	})
	if err != nil {
		return models.ArchivedEntry{}, err
	}

	visits, err := c.store.VisitsOn(ctx, entry.OperatingDay)
	if err != nil {
		return models.ArchivedEntry{}, fmt.Errorf("visits: %w", err)
	}
	out := models.ArchivedEntry{Entry: entry, Visits: []models.StationVisit{}}
	for _, v := range visits {
		if v.QueueID == entry.ID {
			out.Visits = append(out.Visits, v)
		}
	}
	return out, nil
}

// Board builds the now-serving / waiting snapshot of today for call screens.
func (c *Controller) Board(ctx context.Context) (Board, error) {
	day := c.Today()
	entries, err := c.store.EntriesOn(ctx, day)
	if err != nil {
		return Board{}, fmt.Errorf("board entries: %w", err)
	}
	visits, err := c.store.VisitsOn(ctx, day)
	if err != nil {
		return Board{}, fmt.Errorf("board visits: %w", err)
	}

	byID := make(map[int64]models.QueueEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	visited := make(map[[2]int64]bool, len(visits))
	for _, v := range visits {
		visited[[2]int64{v.QueueID, v.StationID}] = true
	}

	board := Board{Day: day, Timestamp: c.now()}
	for _, s := range c.route.Stations() {
		sb := StationBoard{Station: s, Serving: []BoardItem{}, NextNumbers: []int64{}}

		for _, v := range visits {
			if v.StationID != s.ID || !v.Open() {
				continue
			}
			e := byID[v.QueueID]
			sb.Serving = append(sb.Serving, BoardItem{
				QueueID:     e.ID,
				QueueNumber: e.QueueNumber,
				Priority:    e.Priority,
				Status:      v.Status,
				RecallCount: v.RecallCount,
				Silent:      v.Silent,
				CalledAt:    v.CreatedAt,
			})
		}
		sort.Slice(sb.Serving, func(i, j int) bool {
			return sb.Serving[i].CalledAt.After(sb.Serving[j].CalledAt)
		})

		var waiting []models.QueueEntry
		for _, e := range entries {
			if isPositioned(e, s.ID, c.route.IsFirst(s.ID)) && !visited[[2]int64{e.ID, s.ID}] {
				waiting = append(waiting, e)
			}
		}
		SortForCall(waiting)
		sb.WaitingCount = len(waiting)
		for i := 0; i < len(waiting) && i < boardPreview; i++ {
			sb.NextNumbers = append(sb.NextNumbers, waiting[i].QueueNumber)
		}

		board.Stations = append(board.Stations, sb)
	}
	return board, nil
}

// SortForCall orders entries urgent first, then by queue number.
func SortForCall(entries []models.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].QueueNumber < entries[j].QueueNumber
	})
}

// isPositioned is the station half of the eligibility rule; callers still
// check there is no visit at the station yet.
func isPositioned(e models.QueueEntry, stationID int64, first bool) bool {
	if e.Status != models.EntryActive {
		return false
	}
	if e.CurrentStationID == nil {
		return first
	}
	return *e.CurrentStationID == stationID
}
