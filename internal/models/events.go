package models

import "time"

type EventType string

const (
	EventSettingsUpdated EventType = "settings_updated"
	EventJobsCreated     EventType = "jobs_created"
	EventJobUpdated      EventType = "job_updated"
	EventJobsUpdated     EventType = "jobs_updated"
	EventJobsDeleted     EventType = "jobs_deleted"
)

// Event is a structured change notification broadcast to subscribers.
// Delivery is fire-and-forget, at-least-once best effort.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}
