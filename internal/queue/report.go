package queue

import (
	"context"
	"fmt"
	"time"

	"clinic-queue/internal/models"
)

type StationReport struct {
	Station           models.Station `json:"station"`
	Called            int            `json:"called"`
	Completed         int            `json:"completed"`
	Cancelled         int            `json:"cancelled"`
	Recalls           int            `json:"recalls"`
	AvgServiceSeconds float64        `json:"avg_service_seconds"`
}

type DailyReport struct {
	Day        string          `json:"day"`
	Registered int             `json:"registered"`
	Urgent     int             `json:"urgent"`
	Active     int             `json:"active"`
	Completed  int             `json:"completed"`
	Cancelled  int             `json:"cancelled"`
	Stations   []StationReport `json:"stations"`
}

// Report summarises one operating day.
func (c *Controller) Report(ctx context.Context, day string) (DailyReport, error) {
	entries, err := c.store.EntriesOn(ctx, day)
	if err != nil {
		return DailyReport{}, fmt.Errorf("report entries: %w", err)
	}
	visits, err := c.store.VisitsOn(ctx, day)
	if err != nil {
		return DailyReport{}, fmt.Errorf("report visits: %w", err)
	}

	rep := DailyReport{Day: day, Registered: len(entries)}
	for _, e := range entries {
		if e.Priority == models.PriorityUrgent {
			rep.Urgent++
		}
		switch e.Status {
		case models.EntryActive:
			rep.Active++
		case models.EntryCompleted:
			rep.Completed++
		case models.EntryCancelled:
			rep.Cancelled++
		}
	}

	for _, s := range c.route.Stations() {
		sr := StationReport{Station: s}
		var served time.Duration
		for _, v := range visits {
			if v.StationID != s.ID {
				continue
			}
			sr.Called++
			sr.Recalls += v.RecallCount
			switch v.Status {
			case models.VisitCompleted:
				sr.Completed++
				if v.CompletedAt != nil {
					served += v.CompletedAt.Sub(serviceStart(v))
				}
			case models.VisitCancelled:
				sr.Cancelled++
			}
		}
		if sr.Completed > 0 {
			sr.AvgServiceSeconds = served.Seconds() / float64(sr.Completed)
		}
		rep.Stations = append(rep.Stations, sr)
	}
	return rep, nil
}

// serviceStart is when the station began serving v. Visits completed
// without StartService count from the call.
func serviceStart(v models.StationVisit) time.Time {
	if v.StartedAt != nil {
		return *v.StartedAt
	}
	return v.CreatedAt
}

// Archive copies every finished entry of day, with its visits, into the
// archive. Live rows are left in place. Returns how many were newly archived.
func (c *Controller) Archive(ctx context.Context, day string) (int, error) {
	entries, err := c.store.EntriesOn(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("archive entries: %w", err)
	}
	visits, err := c.store.VisitsOn(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("archive visits: %w", err)
	}

	byQueue := make(map[int64][]models.StationVisit)
	for _, v := range visits {
		byQueue[v.QueueID] = append(byQueue[v.QueueID], v)
	}

	var items []models.ArchivedEntry
	for _, e := range entries {
		if !e.Terminal() {
			continue
		}
		vs := byQueue[e.ID]
		if vs == nil {
			vs = []models.StationVisit{}
		}
		items = append(items, models.ArchivedEntry{Entry: e, Visits: vs})
	}
	if len(items) == 0 {
		return 0, nil
	}

	n, err := c.store.SaveArchive(ctx, day, items)
	if err != nil {
		return 0, fmt.Errorf("save archive: %w", err)
	}
	c.log.Info().Str("day", day).Int("archived", n).Msg("archive done")
	return n, nil
}
