package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinic-queue/internal/helper"
	"clinic-queue/internal/models"
)

const (
	// RecallsBeforeCancel is how many recalls a visit needs before the entry
	// may be cancelled as a no-show.
	RecallsBeforeCancel = 3
	RecallCooldown      = 10 * time.Second
)

// Controller is the single authority on station-side transitions of a
// queue entry.
type Controller struct {
	store    Store
	route    *Route
	notifier Notifier
	log      zerolog.Logger

	now            func() time.Time
	loc            *time.Location
	hours          *models.OpeningHours
	strictCooldown bool
}

type Option func(*Controller)

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLocation sets the clinic timezone used to compute the operating day.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) { c.loc = loc }
}

// WithOpeningHours makes Enqueue fail outside the reception window.
func WithOpeningHours(h models.OpeningHours) Option {
	return func(c *Controller) { c.hours = &h }
}

// WithStrictCooldown rejects recalls issued before the previous cooldown ended.
func WithStrictCooldown(strict bool) Option {
	return func(c *Controller) { c.strictCooldown = strict }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func NewController(store Store, route *Route, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		route:    route,
		notifier: NopNotifier{},
		log:      zerolog.Nop(),
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Route() *Route {
	return c.route
}

// Today is the current operating day.
func (c *Controller) Today() string {
	return helper.OperatingDay(c.now(), c.loc)
}

// CallResult is what a call or recall hands back to the station.
type CallResult struct {
	Entry    models.QueueEntry   `json:"entry"`
	Visit    models.StationVisit `json:"visit"`
	Station  models.Station      `json:"station"`
	Recalled bool                `json:"recalled"`
}

/*
|--------------------------------------------------------------------------
| Reception
|--------------------------------------------------------------------------
*/

// Enqueue registers a new visit with the next queue number of the day.
func (c *Controller) Enqueue(ctx context.Context, patientID string, priority models.Priority) (models.QueueEntry, error) {
	now := c.now()
	if c.hours != nil && !helper.IsOpenAt(now.In(c.loc), *c.hours) {
		return models.QueueEntry{}, ErrReceptionClosed
	}
	if priority != models.PriorityUrgent {
		priority = models.PriorityNormal
	}

	entry, err := c.store.CreateEntry(ctx, helper.OperatingDay(now, c.loc), patientID, priority, now)
	if err != nil {
		return models.QueueEntry{}, fmt.Errorf("create entry: %w", err)
	}

	c.log.Info().
		Int64("queue_number", entry.QueueNumber).
		Int("priority", int(entry.Priority)).
		Msg("entry registered")
	c.publish(ctx, EventNewQueue, entry, nil, nil)
	return entry, nil
}

/*
|--------------------------------------------------------------------------
| Station calls
|--------------------------------------------------------------------------
*/

// CallNext picks the next entry for stationID: urgent first, then lowest
// queue number.
func (c *Controller) CallNext(ctx context.Context, stationID int64, calledBy string) (CallResult, error) {
	station, ok := c.route.Station(stationID)
	if !ok {
		return CallResult{}, ErrUnknownStation
	}

	var res CallResult
	err := c.store.Atomically(ctx, func(tx Tx) error {
		candidates, err := tx.Candidates(ctx, c.Today(), stationID, c.route.IsFirst(stationID))
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return ErrNoEligibleEntry
		}
		res, err = c.openCall(ctx, tx, candidates[0], station, calledBy, station.Silent)
		return err
	})
	if err != nil {
		return CallResult{}, c.translate(err)
	}

	c.log.Info().
		Int64("queue_number", res.Entry.QueueNumber).
		Int("station", station.DisplayNumber).
		Str("called_by", calledBy).
		Msg("call next")
	c.publish(ctx, EventPatientCalled, res.Entry, &res.Station, &res.Visit)
	return res, nil
}

// CallSpecific calls an explicit queue number of today. An open visit of the
// entry at the same station turns the call into a recall. silent only drops
// the public announcement.
func (c *Controller) CallSpecific(ctx context.Context, stationID, queueNumber int64, calledBy string, silent bool) (CallResult, error) {
	station, ok := c.route.Station(stationID)
	if !ok {
		return CallResult{}, ErrUnknownStation
	}

	var res CallResult
	err := c.store.Atomically(ctx, func(tx Tx) error {
		entry, err := tx.EntryByNumber(ctx, c.Today(), queueNumber)
		if err != nil {
			return err
		}
		if entry.Terminal() {
			return ErrEntryNotEligible
		}

		open, found, err := tx.FindOpenVisit(ctx, entry.ID, stationID)
		if err != nil {
			return err
		}
		if found {
			res, err = c.recallVisit(ctx, tx, entry, open, station, calledBy)
			return err
		}

		eligible, err := c.positioned(ctx, tx, entry, stationID)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrEntryNotEligible
		}
		res, err = c.openCall(ctx, tx, entry, station, calledBy, silent)
		return err
	})
	if err != nil {
		return CallResult{}, c.translate(err)
	}

	c.log.Info().
		Int64("queue_number", res.Entry.QueueNumber).
		Int("station", station.DisplayNumber).
		Bool("recalled", res.Recalled).
		Bool("silent", res.Visit.Silent).
		Msg("call specific")
	c.publish(ctx, EventPatientCalled, res.Entry, &res.Station, &res.Visit)
	return res, nil
}

// Recall re-announces an open visit. It is never capped; the count only
// gates Cancel.
func (c *Controller) Recall(ctx context.Context, stationID, queueNumber int64, calledBy string) (CallResult, error) {
	station, ok := c.route.Station(stationID)
	if !ok {
		return CallResult{}, ErrUnknownStation
	}

	var res CallResult
	err := c.store.Atomically(ctx, func(tx Tx) error {
		entry, err := tx.EntryByNumber(ctx, c.Today(), queueNumber)
		if err != nil {
			return err
		}
		if entry.Terminal() {
			return ErrEntryNotEligible
		}
		open, found, err := tx.FindOpenVisit(ctx, entry.ID, stationID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNoOpenVisit
		}
		res, err = c.recallVisit(ctx, tx, entry, open, station, calledBy)
		return err
	})
	if err != nil {
		return CallResult{}, c.translate(err)
	}

	c.log.Info().
		Int64("queue_number", res.Entry.QueueNumber).
		Int("station", station.DisplayNumber).
		Int("recall_count", res.Visit.RecallCount).
		Msg("recall")
	c.publish(ctx, EventPatientCalled, res.Entry, &res.Station, &res.Visit)
	return res, nil
}

/*
|--------------------------------------------------------------------------
| Service
|--------------------------------------------------------------------------
*/

// StartService moves the open visit to IN_PROGRESS. Repeating it is a no-op.
func (c *Controller) StartService(ctx context.Context, stationID, queueID int64) (models.StationVisit, error) {
	station, ok := c.route.Station(stationID)
	if !ok {
		return models.StationVisit{}, ErrUnknownStation
	}

	var (
		entry   models.QueueEntry
		visit   models.StationVisit
		changed bool
	)
	err := c.store.Atomically(ctx, func(tx Tx) error {
		var err error
		entry, visit, err = c.openVisitOf(ctx, tx, queueID, stationID)
		if err != nil {
			return err
		}
		if visit.Status == models.VisitInProgress {
			return nil
		}
		at := c.now()
		visit.Status = models.VisitInProgress
		visit.StartedAt = &at
		changed = true
		return tx.SaveVisit(ctx, visit)
	})
	if err != nil {
		return models.StationVisit{}, c.translate(err)
	}

	if changed {
		c.publish(ctx, EventQueueUpdated, entry, &station, &visit)
	}
	return visit, nil
}

// CompleteService closes the open visit and moves the entry to the next
// station, or completes the entry at the last one.
func (c *Controller) CompleteService(ctx context.Context, stationID, queueID int64, notes string) (models.QueueEntry, error) {
	station, ok := c.route.Station(stationID)
	if !ok {
		return models.QueueEntry{}, ErrUnknownStation
	}

	var (
		entry models.QueueEntry
		visit models.StationVisit
	)
	err := c.store.Atomically(ctx, func(tx Tx) error {
		var err error
		entry, visit, err = c.openVisitOf(ctx, tx, queueID, stationID)
		if err != nil {
			return err
		}

		at := c.now()
		if err := tx.CloseVisit(ctx, visit.ID, models.VisitCompleted, notes, at); err != nil {
			return err
		}
		visit.Status = models.VisitCompleted
		visit.Notes = notes
		visit.CompletedAt = &at

		if next, ok := c.route.Next(stationID); ok {
			if err := tx.AdvanceStation(ctx, entry.ID, &next.ID); err != nil {
				return err
			}
			entry.CurrentStationID = &next.ID
			return nil
		}

		if err := tx.AdvanceStation(ctx, entry.ID, nil); err != nil {
			return err
		}
		if err := tx.SetEntryStatus(ctx, entry.ID, models.EntryCompleted, &at); err != nil {
			return err
		}
		entry.CurrentStationID = nil
		entry.Status = models.EntryCompleted
		entry.CompletedAt = &at
		return nil
	})
	if err != nil {
		return models.QueueEntry{}, c.translate(err)
	}

	c.log.Info().
		Int64("queue_number", entry.QueueNumber).
		Int("station", station.DisplayNumber).
		Str("entry_status", string(entry.Status)).
		Msg("service completed")

	if entry.Status == models.EntryCompleted {
		c.publish(ctx, EventQueueCompleted, entry, &station, &visit)
	} else {
		c.publish(ctx, EventQueueUpdated, entry, &station, &visit)
	}
	return entry, nil
}

// Cancel marks the entry as a no-show. The visit at the entry's current
// station must have been recalled at least RecallsBeforeCancel times.
func (c *Controller) Cancel(ctx context.Context, queueID int64) (models.QueueEntry, error) {
	var (
		entry   models.QueueEntry
		visit   models.StationVisit
		station *models.Station
	)
	err := c.store.Atomically(ctx, func(tx Tx) error {
		var err error
		entry, err = tx.Entry(ctx, queueID)
		if err != nil {
			return err
		}
		if entry.Terminal() {
			return ErrEntryNotEligible
		}
		if entry.CurrentStationID == nil {
			return &RecallThresholdError{Count: 0, Required: RecallsBeforeCancel}
		}

		stationID := *entry.CurrentStationID
		if s, ok := c.route.Station(stationID); ok {
			station = &s
		}

		open, found, err := tx.FindOpenVisit(ctx, entry.ID, stationID)
		if err != nil {
			return err
		}
		if found {
			visit = open
		} else {
			visit, found, err = tx.LatestVisit(ctx, entry.ID, stationID)
			if err != nil {
				return err
			}
		}
		if !found || visit.RecallCount < RecallsBeforeCancel {
			return &RecallThresholdError{Count: visit.RecallCount, Required: RecallsBeforeCancel}
		}

		at := c.now()
		if visit.Open() {
			if err := tx.CloseVisit(ctx, visit.ID, models.VisitCancelled, visit.Notes, at); err != nil {
				return err
			}
			visit.Status = models.VisitCancelled
			visit.CompletedAt = &at
		}
		if err := tx.SetEntryStatus(ctx, entry.ID, models.EntryCancelled, nil); err != nil {
			return err
		}
		entry.Status = models.EntryCancelled
		return nil
	})
	if err != nil {
		return models.QueueEntry{}, c.translate(err)
	}

	c.log.Info().
		Int64("queue_number", entry.QueueNumber).
		Int("recall_count", visit.RecallCount).
		Msg("entry cancelled")
	c.publish(ctx, EventQueueUpdated, entry, station, &visit)
	return entry, nil
}

/*
|--------------------------------------------------------------------------
| Internals
|--------------------------------------------------------------------------
*/

func (c *Controller) openCall(ctx context.Context, tx Tx, entry models.QueueEntry, station models.Station, calledBy string, silent bool) (CallResult, error) {
	visit, err := tx.OpenVisit(ctx, models.StationVisit{
		QueueID:   entry.ID,
		StationID: station.ID,
		Status:    models.VisitCalled,
		CalledBy:  calledBy,
		Silent:    silent,
		CreatedAt: c.now(),
	})
	if err != nil {
		return CallResult{}, err
	}

	if err := tx.AdvanceStation(ctx, entry.ID, &station.ID); err != nil {
		return CallResult{}, err
	}
	id := station.ID
	entry.CurrentStationID = &id

	return CallResult{Entry: entry, Visit: visit, Station: station}, nil
}

func (c *Controller) recallVisit(ctx context.Context, tx Tx, entry models.QueueEntry, visit models.StationVisit, station models.Station, calledBy string) (CallResult, error) {
	now := c.now()
	if c.strictCooldown && visit.CooldownUntil != nil && now.Before(*visit.CooldownUntil) {
		return CallResult{}, ErrCooldownActive
	}

	until := now.Add(RecallCooldown)
	visit.RecallCount++
	visit.CooldownUntil = &until
	if calledBy != "" {
		visit.CalledBy = calledBy
	}
	if err := tx.SaveVisit(ctx, visit); err != nil {
		return CallResult{}, err
	}

	return CallResult{Entry: entry, Visit: visit, Station: station, Recalled: true}, nil
}

// positioned reports whether entry may be called fresh at stationID.
func (c *Controller) positioned(ctx context.Context, tx Tx, entry models.QueueEntry, stationID int64) (bool, error) {
	if entry.Terminal() {
		return false, nil
	}
	if entry.CurrentStationID == nil {
		if !c.route.IsFirst(stationID) {
			return false, nil
		}
	} else if *entry.CurrentStationID != stationID {
		return false, nil
	}

	_, visited, err := tx.LatestVisit(ctx, entry.ID, stationID)
	if err != nil {
		return false, err
	}
	return !visited, nil
}

func (c *Controller) openVisitOf(ctx context.Context, tx Tx, queueID, stationID int64) (models.QueueEntry, models.StationVisit, error) {
	entry, err := tx.Entry(ctx, queueID)
	if err != nil {
		return models.QueueEntry{}, models.StationVisit{}, err
	}
	if entry.Terminal() {
		return models.QueueEntry{}, models.StationVisit{}, ErrEntryNotEligible
	}
	visit, found, err := tx.FindOpenVisit(ctx, queueID, stationID)
	if err != nil {
		return models.QueueEntry{}, models.StationVisit{}, err
	}
	if !found {
		return models.QueueEntry{}, models.StationVisit{}, ErrNoOpenVisit
	}
	return entry, visit, nil
}

// translate keeps storage conflicts out of the caller's error vocabulary.
func (c *Controller) translate(err error) error {
	if errors.Is(err, ErrConflict) {
		c.log.Warn().Err(err).Msg("lost race, reporting entry as not eligible")
		return ErrEntryNotEligible
	}
	return err
}

func (c *Controller) publish(ctx context.Context, typ EventType, entry models.QueueEntry, station *models.Station, visit *models.StationVisit) {
	ev := Event{
		ID:          uuid.NewString(),
		Type:        typ,
		QueueID:     entry.ID,
		QueueNumber: entry.QueueNumber,
		Priority:    entry.Priority,
		EntryStatus: entry.Status,
		Timestamp:   c.now(),
	}
	if station != nil {
		id := station.ID
		ev.StationID = &id
		ev.DisplayNumber = station.DisplayNumber
		ev.StationName = station.Name
	}
	if visit != nil {
		ev.VisitStatus = visit.Status
		ev.RecallCount = visit.RecallCount
		ev.Announce = typ == EventPatientCalled && !visit.Silent
	}
	c.notifier.Publish(ctx, ev)
}
