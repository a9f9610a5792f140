package queue

import (
	"context"
	"time"

	"clinic-queue/internal/models"
)

type EventType string

const (
	EventPatientCalled  EventType = "patient-called"
	EventQueueUpdated   EventType = "queue-updated"
	EventNewQueue       EventType = "new-queue"
	EventQueueCompleted EventType = "queue-completed"
)

// Event carries enough for a screen to refresh without polling.
type Event struct {
	ID            string             `json:"id"`
	Type          EventType          `json:"type"`
	QueueID       int64              `json:"queue_id"`
	QueueNumber   int64              `json:"queue_number"`
	Priority      models.Priority    `json:"priority"`
	EntryStatus   models.EntryStatus `json:"entry_status"`
	StationID     *int64             `json:"station_id,omitempty"`
	DisplayNumber int                `json:"display_number,omitempty"`
	StationName   string             `json:"station_name,omitempty"`
	VisitStatus   models.VisitStatus `json:"visit_status,omitempty"`
	RecallCount   int                `json:"recall_count"`
	Announce      bool               `json:"announce"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Notifier is fire-and-forget. Delivery is best effort; correctness never
// depends on it.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) {}
