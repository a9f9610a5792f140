package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-queue/internal/models"
	"clinic-queue/internal/queue"
)

func newMock(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQL(db), mock
}

var entryColumns = []string{
	"id", "queue_number", "operating_day", "patient_id", "priority",
	"status", "current_station_id", "created_at", "completed_at",
}

func TestCreateEntryAssignsNextNumber(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO queue_counters (operating_day, last_number) VALUES (?, 1) ON DUPLICATE KEY UPDATE last_number = last_number + 1")).
		WithArgs("2026-03-01").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT last_number FROM queue_counters WHERE operating_day = ?")).
		WithArgs("2026-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"last_number"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO queue_entries")).
		WithArgs(int64(7), "2026-03-01", "P-1", 1, "ACTIVE", at).
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectCommit()

	e, err := s.CreateEntry(context.Background(), "2026-03-01", "P-1", models.PriorityUrgent, at)
	require.NoError(t, err)
	assert.Equal(t, int64(41), e.ID)
	assert.Equal(t, int64(7), e.QueueNumber)
	assert.Equal(t, models.EntryActive, e.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEntryDuplicateNumberIsConflict(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO queue_counters")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT last_number FROM queue_counters")).
		WillReturnRows(sqlmock.NewRows([]string{"last_number"}).AddRow(int64(1)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO queue_entries")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := s.CreateEntry(context.Background(), "2026-03-01", "P-1", models.PriorityNormal, time.Now())
	assert.ErrorIs(t, err, queue.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM queue_entries WHERE id = ? FOR UPDATE")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(entryColumns))
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(tx queue.Tx) error {
		_, err := tx.Entry(context.Background(), 5)
		return err
	})
	assert.ErrorIs(t, err, queue.ErrEntryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenVisitDuplicateIsConflict(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO station_visits")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_open_visit'"})
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(tx queue.Tx) error {
		_, err := tx.OpenVisit(context.Background(), models.StationVisit{QueueID: 1, StationID: 2, CreatedAt: time.Now()})
		return err
	})
	assert.True(t, errors.Is(err, queue.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidatesScansOrderedRows(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(entryColumns).
		AddRow(int64(3), int64(5), "2026-03-01", "P-5", 1, "ACTIVE", nil, created, nil).
		AddRow(int64(1), int64(2), "2026-03-01", "P-2", 0, "ACTIVE", int64(10), created, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY e.priority DESC, e.queue_number ASC")).
		WithArgs("2026-03-01", int64(10), true, int64(10)).
		WillReturnRows(rows)
	mock.ExpectCommit()

	var got []models.QueueEntry
	err := s.Atomically(context.Background(), func(tx queue.Tx) error {
		var err error
		got, err = tx.Candidates(context.Background(), "2026-03-01", 10, true)
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.PriorityUrgent, got[0].Priority)
	assert.Nil(t, got[0].CurrentStationID)
	require.NotNil(t, got[1].CurrentStationID)
	assert.Equal(t, int64(10), *got[1].CurrentStationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEntryDeadlockIsConflict(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO queue_counters")).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()

	_, err := s.CreateEntry(context.Background(), "2026-03-01", "P-1", models.PriorityNormal, time.Now())
	assert.ErrorIs(t, err, queue.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitingDoesNotLock(t *testing.T) {
	noLock := sqlmock.QueryMatcherFunc(func(expectedSQL, actualSQL string) error {
		if strings.Contains(actualSQL, "FOR UPDATE") {
			return fmt.Errorf("waiting list must not lock rows: %s", actualSQL)
		}
		return sqlmock.QueryMatcherRegexp.Match(expectedSQL, actualSQL)
	})
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(noLock))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewMySQL(db)

	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY e.priority DESC, e.queue_number ASC")).
		WithArgs("2026-03-01", int64(10), true, int64(10)).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(int64(3), int64(5), "2026-03-01", "P-5", 1, "ACTIVE", nil, created, nil))

	got, err := s.Waiting(context.Background(), "2026-03-01", 10, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].QueueNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseVisitRequiresOpenRow(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE station_visits SET status = ?, notes = ?, completed_at = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(tx queue.Tx) error {
		return tx.CloseVisit(context.Background(), 9, models.VisitCompleted, "", time.Now())
	})
	assert.ErrorIs(t, err, queue.ErrNoOpenVisit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetEntryStatusOnTerminalEntry(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE queue_entries SET status = ?, completed_at = ? WHERE id = ? AND status = 'ACTIVE'")).
		WithArgs("CANCELLED", nil, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(tx queue.Tx) error {
		return tx.SetEntryStatus(context.Background(), 4, models.EntryCancelled, nil)
	})
	assert.ErrorIs(t, err, queue.ErrEntryNotEligible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveArchiveCountsNewRows(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO queue_archive")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO queue_archive")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := s.SaveArchive(context.Background(), "2026-03-01", []models.ArchivedEntry{
		{Entry: models.QueueEntry{ID: 1}},
		{Entry: models.QueueEntry{ID: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserByEmailNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("nobody@clinic.test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password", "role", "station_id", "created_at"}))

	_, err := s.UserByEmail(context.Background(), "nobody@clinic.test")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStations(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM stations")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_number", "sequence_order", "name", "silent"}).
			AddRow(int64(1), 1, 1, "accounting", false).
			AddRow(int64(5), 5, 5, "blood-type", true))

	got, err := s.Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[1].Silent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
