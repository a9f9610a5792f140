package models

import (
	"time"
)

type EntryStatus string

const (
	EntryActive    EntryStatus = "ACTIVE"
	EntryCompleted EntryStatus = "COMPLETED"
	EntryCancelled EntryStatus = "CANCELLED"
)

type VisitStatus string

const (
	VisitCalled     VisitStatus = "CALLED"
	VisitInProgress VisitStatus = "IN_PROGRESS"
	VisitCompleted  VisitStatus = "COMPLETED"
	VisitCancelled  VisitStatus = "CANCELLED"
)

type Priority int

const (
	PriorityNormal Priority = 0
	PriorityUrgent Priority = 1
)

// QueueEntry - one patient visit, end to end
type QueueEntry struct {
	ID               int64       `json:"id"`
	QueueNumber      int64       `json:"queue_number"`
	OperatingDay     string      `json:"operating_day"` // YYYY-MM-DD
	PatientID        string      `json:"patient_id"`
	Priority         Priority    `json:"priority"`
	Status           EntryStatus `json:"status"`
	CurrentStationID *int64      `json:"current_station_id"`
	CreatedAt        time.Time   `json:"created_at"`
	CompletedAt      *time.Time  `json:"completed_at"`
}

func (e QueueEntry) Terminal() bool {
	return e.Status != EntryActive
}

// StationVisit - history record of one entry at one station
type StationVisit struct {
	ID            int64       `json:"id"`
	QueueID       int64       `json:"queue_id"`
	StationID     int64       `json:"station_id"`
	Status        VisitStatus `json:"status"`
	CalledBy      string      `json:"called_by"`
	Silent        bool        `json:"silent"`
	RecallCount   int         `json:"recall_count"`
	CooldownUntil *time.Time  `json:"cooldown_until"`
	Notes         string      `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	StartedAt     *time.Time  `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at"`
}

func (v StationVisit) Open() bool {
	return v.Status == VisitCalled || v.Status == VisitInProgress
}

// ArchivedEntry - aggregate copied to queue_archive
type ArchivedEntry struct {
	Entry  QueueEntry     `json:"entry"`
	Visits []StationVisit `json:"visits"`
}
