package queue

import (
	"context"
	"time"

	"clinic-queue/internal/models"
)

// Store persists entries and visits. Every controller operation runs its
// read-check-write inside one Atomically call.
type Store interface {
	// CreateEntry assigns the next queue number of day.
	CreateEntry(ctx context.Context, day, patientID string, priority models.Priority, at time.Time) (models.QueueEntry, error)
	Atomically(ctx context.Context, fn func(tx Tx) error) error

	// Waiting is Candidates outside a transaction, without row locks.
	Waiting(ctx context.Context, day string, stationID int64, first bool) ([]models.QueueEntry, error)
	EntriesOn(ctx context.Context, day string) ([]models.QueueEntry, error)
	// VisitsOn returns every visit of the entries created on day.
	VisitsOn(ctx context.Context, day string) ([]models.StationVisit, error)
	// SaveArchive stores aggregates not archived yet and returns how many were new.
	SaveArchive(ctx context.Context, day string, items []models.ArchivedEntry) (int, error)
}

// Tx is the transactional view used by the controller. Reads return the
// latest committed state and lock what they return where the backend can.
type Tx interface {
	Entry(ctx context.Context, id int64) (models.QueueEntry, error)
	EntryByNumber(ctx context.Context, day string, number int64) (models.QueueEntry, error)
	// Candidates lists ACTIVE entries of day positioned for stationID with no
	// visit there yet, urgent first then by queue number.
	Candidates(ctx context.Context, day string, stationID int64, first bool) ([]models.QueueEntry, error)

	FindOpenVisit(ctx context.Context, queueID, stationID int64) (models.StationVisit, bool, error)
	LatestVisit(ctx context.Context, queueID, stationID int64) (models.StationVisit, bool, error)
	// OpenVisit inserts a CALLED visit, or fails with ErrConflict when one is
	// already open for (queue, station).
	OpenVisit(ctx context.Context, v models.StationVisit) (models.StationVisit, error)
	SaveVisit(ctx context.Context, v models.StationVisit) error
	CloseVisit(ctx context.Context, visitID int64, outcome models.VisitStatus, notes string, at time.Time) error

	AdvanceStation(ctx context.Context, queueID int64, stationID *int64) error
	SetEntryStatus(ctx context.Context, queueID int64, status models.EntryStatus, at *time.Time) error
}
