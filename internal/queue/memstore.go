package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinic-queue/internal/models"
)

// MemoryStore keeps everything in process. Atomically holds one mutex for
// the whole callback and rolls back on error.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[int64]models.QueueEntry
	visits    map[int64]models.StationVisit
	lastNo    map[string]int64
	archive   map[int64]models.ArchivedEntry
	nextID    int64
	nextVisit int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[int64]models.QueueEntry),
		visits:  make(map[int64]models.StationVisit),
		lastNo:  make(map[string]int64),
		archive: make(map[int64]models.ArchivedEntry),
	}
}

func (s *MemoryStore) CreateEntry(_ context.Context, day, patientID string, priority models.Priority, at time.Time) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.lastNo[day]++
	e := models.QueueEntry{
		ID:           s.nextID,
		QueueNumber:  s.lastNo[day],
		OperatingDay: day,
		PatientID:    patientID,
		Priority:     priority,
		Status:       models.EntryActive,
		CreatedAt:    at,
	}
	s.entries[e.ID] = e
	return e, nil
}

func (s *MemoryStore) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(map[int64]models.QueueEntry, len(s.entries))
	for k, v := range s.entries {
		entries[k] = v
	}
	visits := make(map[int64]models.StationVisit, len(s.visits))
	for k, v := range s.visits {
		visits[k] = v
	}
	nextVisit := s.nextVisit

	if err := fn(memTx{s}); err != nil {
		s.entries = entries
		s.visits = visits
		s.nextVisit = nextVisit
		return err
	}
	return nil
}

func (s *MemoryStore) Waiting(ctx context.Context, day string, stationID int64, first bool) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.Candidates(ctx, day, stationID, first)
}

func (s *MemoryStore) EntriesOn(_ context.Context, day string) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.QueueEntry
	for _, e := range s.entries {
		if e.OperatingDay == day {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueueNumber < out[j].QueueNumber })
	return out, nil
}

func (s *MemoryStore) VisitsOn(_ context.Context, day string) ([]models.StationVisit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.StationVisit
	for _, v := range s.visits {
		if s.entries[v.QueueID].OperatingDay == day {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveArchive(_ context.Context, _ string, items []models.ArchivedEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range items {
		if _, done := s.archive[it.Entry.ID]; done {
			continue
		}
		s.archive[it.Entry.ID] = it
		n++
	}
	return n, nil
}

// Archived returns the archived aggregate of one entry.
func (s *MemoryStore) Archived(queueID int64) (models.ArchivedEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archive[queueID]
	return a, ok
}

// memTx runs with MemoryStore.mu held.
type memTx struct {
	s *MemoryStore
}

func (t memTx) Entry(_ context.Context, id int64) (models.QueueEntry, error) {
	e, ok := t.s.entries[id]
	if !ok {
		return models.QueueEntry{}, ErrEntryNotFound
	}
	return e, nil
}

func (t memTx) EntryByNumber(_ context.Context, day string, number int64) (models.QueueEntry, error) {
	for _, e := range t.s.entries {
		if e.OperatingDay == day && e.QueueNumber == number {
			return e, nil
		}
	}
	return models.QueueEntry{}, ErrEntryNotFound
}

func (t memTx) Candidates(_ context.Context, day string, stationID int64, first bool) ([]models.QueueEntry, error) {
	var out []models.QueueEntry
	for _, e := range t.s.entries {
		if e.OperatingDay != day || !isPositioned(e, stationID, first) {
			continue
		}
		if t.hasVisit(e.ID, stationID) {
			continue
		}
		out = append(out, e)
	}
	SortForCall(out)
	return out, nil
}

func (t memTx) hasVisit(queueID, stationID int64) bool {
	for _, v := range t.s.visits {
		if v.QueueID == queueID && v.StationID == stationID {
			return true
		}
	}
	return false
}

func (t memTx) FindOpenVisit(_ context.Context, queueID, stationID int64) (models.StationVisit, bool, error) {
	for _, v := range t.s.visits {
		if v.QueueID == queueID && v.StationID == stationID && v.Open() {
			return v, true, nil
		}
	}
	return models.StationVisit{}, false, nil
}

func (t memTx) LatestVisit(_ context.Context, queueID, stationID int64) (models.StationVisit, bool, error) {
	var (
		latest models.StationVisit
		found  bool
	)
	for _, v := range t.s.visits {
		if v.QueueID != queueID || v.StationID != stationID {
			continue
		}
		if !found || v.ID > latest.ID {
			latest, found = v, true
		}
	}
	return latest, found, nil
}

func (t memTx) OpenVisit(ctx context.Context, v models.StationVisit) (models.StationVisit, error) {
	if _, open, _ := t.FindOpenVisit(ctx, v.QueueID, v.StationID); open {
		return models.StationVisit{}, ErrConflict
	}
	t.s.nextVisit++
	v.ID = t.s.nextVisit
	v.Status = models.VisitCalled
	t.s.visits[v.ID] = v
	return v, nil
}

func (t memTx) SaveVisit(_ context.Context, v models.StationVisit) error {
	if _, ok := t.s.visits[v.ID]; !ok {
		return ErrNoOpenVisit
	}
	t.s.visits[v.ID] = v
	return nil
}

func (t memTx) CloseVisit(_ context.Context, visitID int64, outcome models.VisitStatus, notes string, at time.Time) error {
	v, ok := t.s.visits[visitID]
	if !ok || !v.Open() {
		return ErrNoOpenVisit
	}
	v.Status = outcome
	v.Notes = notes
	v.CompletedAt = &at
	t.s.visits[visitID] = v
	return nil
}

func (t memTx) AdvanceStation(_ context.Context, queueID int64, stationID *int64) error {
	e, ok := t.s.entries[queueID]
	if !ok {
		return ErrEntryNotFound
	}
	if stationID != nil {
		id := *stationID
		stationID = &id
	}
	e.CurrentStationID = stationID
	t.s.entries[queueID] = e
	return nil
}

func (t memTx) SetEntryStatus(_ context.Context, queueID int64, status models.EntryStatus, at *time.Time) error {
	e, ok := t.s.entries[queueID]
	if !ok {
		return ErrEntryNotFound
	}
	if e.Status != models.EntryActive {
		return ErrEntryNotEligible
	}
	e.Status = status
	e.CompletedAt = at
	t.s.entries[queueID] = e
	return nil
}
