package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"clinic-queue/internal/models"
	"clinic-queue/internal/queue"
)

//go:embed schema.sql
var schema string

// MySQL implements queue.Store plus the station and user lookups on top of
// InnoDB. Locking reads use FOR UPDATE; uq_open_visit keeps one open visit
// per (entry, station).
type MySQL struct {
	db *sql.DB
}

func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

// Migrate runs schema.sql statement by statement.
func (s *MySQL) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const entryCols = `id, queue_number, operating_day, patient_id, priority, status, current_station_id, created_at, completed_at`

const visitCols = `id, queue_id, station_id, status, called_by, silent, recall_count, cooldown_until, COALESCE(notes, ''), created_at, started_at, completed_at`

/*
|--------------------------------------------------------------------------
| queue.Store
|--------------------------------------------------------------------------
*/

func (s *MySQL) CreateEntry(ctx context.Context, day, patientID string, priority models.Priority, at time.Time) (models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// The counter row serialises numbering per day; the upsert holds its
		// row lock until commit.
		_, err := tx.ExecContext(ctx,
			`INSERT INTO queue_counters (operating_day, last_number) VALUES (?, 1) ON DUPLICATE KEY UPDATE last_number = last_number + 1`,
			day,
		)
		if err != nil {
			return err
		}
		var number int64
		err = tx.QueryRowContext(ctx,
			`SELECT last_number FROM queue_counters WHERE operating_day = ?`,
			day,
		).Scan(&number)
		if err != nil {
			return err
		}

		entry = models.QueueEntry{
			QueueNumber:  number,
			OperatingDay: day,
			PatientID:    patientID,
			Priority:     priority,
			Status:       models.EntryActive,
			CreatedAt:    at,
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO queue_entries (queue_number, operating_day, patient_id, priority, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			entry.QueueNumber, day, patientID, int(priority), string(models.EntryActive), at,
		)
		if err != nil {
			return err
		}
		entry.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *MySQL) Atomically(ctx context.Context, fn func(tx queue.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(mysqlTx{tx: tx})
	})
}

// Waiting reads the call order without locking, for dashboards.
func (s *MySQL) Waiting(ctx context.Context, day string, stationID int64, first bool) ([]models.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, candidatesQuery, day, stationID, first, stationID)
	if err != nil {
		return nil, fmt.Errorf("waiting list: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *MySQL) EntriesOn(ctx context.Context, day string) ([]models.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE operating_day = ? ORDER BY queue_number ASC`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *MySQL) VisitsOn(ctx context.Context, day string) ([]models.StationVisit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.queue_id, v.station_id, v.status, v.called_by, v.silent, v.recall_count,
		       v.cooldown_until, COALESCE(v.notes, ''), v.created_at, v.started_at, v.completed_at
		FROM station_visits v
		JOIN queue_entries e ON e.id = v.queue_id
		WHERE e.operating_day = ?
		ORDER BY v.id ASC
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StationVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *MySQL) SaveArchive(ctx context.Context, day string, items []models.ArchivedEntry) (int, error) {
	var n int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		for _, it := range items {
			payload, err := json.Marshal(it)
			if err != nil {
				return fmt.Errorf("marshal entry %d: %w", it.Entry.ID, err)
			}
			res, err := tx.ExecContext(ctx,
				`INSERT IGNORE INTO queue_archive (queue_id, operating_day, payload, archived_at) VALUES (?, ?, ?, ?)`,
				it.Entry.ID, day, payload, now,
			)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			n += int(affected)
		}
		return nil
	})
	return n, err
}

// inTx commits when fn succeeds and maps lock/duplicate errors to
// queue.ErrConflict.
func (s *MySQL) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return translate(err)
	}
	if err := tx.Commit(); err != nil {
		return translate(fmt.Errorf("commit: %w", err))
	}
	return nil
}

const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

func translate(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDuplicateEntry, errLockWaitTimeout, errDeadlock:
			return fmt.Errorf("%w: %v", queue.ErrConflict, err)
		}
	}
	return err
}

/*
|--------------------------------------------------------------------------
| queue.Tx
|--------------------------------------------------------------------------
*/

type mysqlTx struct {
	tx *sql.Tx
}

func (t mysqlTx) Entry(ctx context.Context, id int64) (models.QueueEntry, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE id = ? FOR UPDATE`, id)
	return scanEntryRow(row)
}

func (t mysqlTx) EntryByNumber(ctx context.Context, day string, number int64) (models.QueueEntry, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE operating_day = ? AND queue_number = ? FOR UPDATE`,
		day, number)
	return scanEntryRow(row)
}

// candidatesQuery takes (day, stationID, first, stationID).
const candidatesQuery = `
		SELECT ` + entryCols + `
		FROM queue_entries e
		WHERE e.operating_day = ?
		AND e.status = 'ACTIVE'
		AND (e.current_station_id = ? OR (? AND e.current_station_id IS NULL))
		AND NOT EXISTS (
			SELECT 1 FROM station_visits v
			WHERE v.queue_id = e.id AND v.station_id = ?
		)
		ORDER BY e.priority DESC, e.queue_number ASC`

func (t mysqlTx) Candidates(ctx context.Context, day string, stationID int64, first bool) ([]models.QueueEntry, error) {
	rows, err := t.tx.QueryContext(ctx, candidatesQuery+`
		FOR UPDATE`, day, stationID, first, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (t mysqlTx) FindOpenVisit(ctx context.Context, queueID, stationID int64) (models.StationVisit, bool, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+visitCols+` FROM station_visits WHERE queue_id = ? AND station_id = ? AND status IN ('CALLED', 'IN_PROGRESS') ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		queueID, stationID)
	return optionalVisit(row)
}

func (t mysqlTx) LatestVisit(ctx context.Context, queueID, stationID int64) (models.StationVisit, bool, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+visitCols+` FROM station_visits WHERE queue_id = ? AND station_id = ? ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		queueID, stationID)
	return optionalVisit(row)
}

func (t mysqlTx) OpenVisit(ctx context.Context, v models.StationVisit) (models.StationVisit, error) {
	v.Status = models.VisitCalled
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO station_visits (queue_id, station_id, status, called_by, silent, recall_count, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)`,
		v.QueueID, v.StationID, string(v.Status), v.CalledBy, v.Silent, v.CreatedAt,
	)
	if err != nil {
		return models.StationVisit{}, translate(err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return models.StationVisit{}, err
	}
	return v, nil
}

func (t mysqlTx) SaveVisit(ctx context.Context, v models.StationVisit) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE station_visits
		SET status = ?, called_by = ?, silent = ?, recall_count = ?, cooldown_until = ?,
		    notes = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`, string(v.Status), v.CalledBy, v.Silent, v.RecallCount, nullTime(v.CooldownUntil),
		v.Notes, nullTime(v.StartedAt), nullTime(v.CompletedAt), v.ID)
	return translate(err)
}

func (t mysqlTx) CloseVisit(ctx context.Context, visitID int64, outcome models.VisitStatus, notes string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE station_visits SET status = ?, notes = ?, completed_at = ? WHERE id = ? AND status IN ('CALLED', 'IN_PROGRESS')`,
		string(outcome), notes, at, visitID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return queue.ErrNoOpenVisit
	}
	return nil
}

func (t mysqlTx) AdvanceStation(ctx context.Context, queueID int64, stationID *int64) error {
	var arg interface{}
	if stationID != nil {
		arg = *stationID
	}
	_, err := t.tx.ExecContext(ctx,
		`UPDATE queue_entries SET current_station_id = ? WHERE id = ?`, arg, queueID)
	return err
}

func (t mysqlTx) SetEntryStatus(ctx context.Context, queueID int64, status models.EntryStatus, at *time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE queue_entries SET status = ?, completed_at = ? WHERE id = ? AND status = 'ACTIVE'`,
		string(status), nullTime(at), queueID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return queue.ErrEntryNotEligible
	}
	return nil
}

/*
|--------------------------------------------------------------------------
| Scanning
|--------------------------------------------------------------------------
*/

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(r scanner) (models.QueueEntry, error) {
	var (
		e         models.QueueEntry
		priority  int
		status    string
		station   sql.NullInt64
		completed sql.NullTime
	)
	err := r.Scan(&e.ID, &e.QueueNumber, &e.OperatingDay, &e.PatientID, &priority,
		&status, &station, &e.CreatedAt, &completed)
	if err != nil {
		return models.QueueEntry{}, err
	}

	e.Priority = models.Priority(priority)
	e.Status = models.EntryStatus(status)
	if station.Valid {
		id := station.Int64
		e.CurrentStationID = &id
	}
	if completed.Valid {
		t := completed.Time
		e.CompletedAt = &t
	}
	return e, nil
}

func scanEntryRow(row *sql.Row) (models.QueueEntry, error) {
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.QueueEntry{}, queue.ErrEntryNotFound
	}
	return e, err
}

func scanEntries(rows *sql.Rows) ([]models.QueueEntry, error) {
	var out []models.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanVisit(r scanner) (models.StationVisit, error) {
	var (
		v                            models.StationVisit
		status                       string
		cooldown, started, completed sql.NullTime
	)
	err := r.Scan(&v.ID, &v.QueueID, &v.StationID, &status, &v.CalledBy, &v.Silent,
		&v.RecallCount, &cooldown, &v.Notes, &v.CreatedAt, &started, &completed)
	if err != nil {
		return models.StationVisit{}, err
	}

	v.Status = models.VisitStatus(status)
	v.CooldownUntil = timePtr(cooldown)
	v.StartedAt = timePtr(started)
	v.CompletedAt = timePtr(completed)
	return v, nil
}

func optionalVisit(row *sql.Row) (models.StationVisit, bool, error) {
	v, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StationVisit{}, false, nil
	}
	if err != nil {
		return models.StationVisit{}, false, err
	}
	return v, true, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
