package models

import (
	"time"

	"groupcast/internal/constants"
)

type JobStatus string

const (
	JobStatusUploaded  JobStatus = "uploaded"
	JobStatusQueued    JobStatus = "queued"
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusSent      JobStatus = "sent"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsValid reports whether the status is one of the defined values.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusUploaded, JobStatusQueued, JobStatusScheduled,
		JobStatusSent, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsMutable reports whether a job in this status may be edited without
// special-casing. Sent jobs are handled separately: editing one supersedes
// the historical record and returns it to the workflow.
func (s JobStatus) IsMutable() bool {
	switch s {
	case JobStatusUploaded, JobStatusQueued, JobStatusScheduled,
		JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type DeliveryType string

const (
	DeliveryTypeScheduled DeliveryType = "scheduled"
	DeliveryTypeCompose   DeliveryType = "compose"
)

// RevisionSource tags the provenance of a content revision.
type RevisionSource string

const (
	RevisionSourceCSVUpload      RevisionSource = "csv_upload"
	RevisionSourceBulkPaste      RevisionSource = "bulk_paste"
	RevisionSourceManualEntry    RevisionSource = "manual_entry"
	RevisionSourceManualEdit     RevisionSource = "manual_edit"
	RevisionSourceCompose        RevisionSource = "compose"
	RevisionSourceRandomizeTimes RevisionSource = "randomize_times"
)

// RevisionData is the immutable snapshot of a job's editable content at one
// point in time.
type RevisionData struct {
	RowID       string    `json:"rowId,omitempty"`
	MessageText string    `json:"messageText"`
	ScheduledAt time.Time `json:"scheduledAt"`
	GroupJID    string    `json:"groupJid,omitempty"`
	GroupName   string    `json:"groupName,omitempty"`
	Enabled     bool      `json:"enabled"`
}

type Revision struct {
	RevisionID int            `json:"revisionId"`
	Timestamp  time.Time      `json:"timestamp"`
	Source     RevisionSource `json:"source"`
	Data       RevisionData   `json:"data"`
}

// StatusEntry records one lifecycle transition. The status history answers
// "what did the system do", the revisions answer "what did the user intend";
// the two ledgers are never merged.
type StatusEntry struct {
	Status    JobStatus `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// ResolvedGroup is the target identity confirmed by the send transport at
// execution time.
type ResolvedGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Job is one scheduled or already-sent message action and its full audit
// state.
type Job struct {
	ID                   int64          `json:"id"`
	RowID                string         `json:"rowId,omitempty"`
	MessageText          string         `json:"messageText"`
	ScheduledAt          time.Time      `json:"scheduledAt"`
	GroupJID             string         `json:"groupJid,omitempty"`
	GroupName            string         `json:"groupName,omitempty"`
	Enabled              bool           `json:"enabled"`
	Status               JobStatus      `json:"status"`
	StatusReason         string         `json:"statusReason,omitempty"`
	RandomDelayAppliedMs int64          `json:"randomDelayAppliedMs"`
	ActualSendAt         *time.Time     `json:"actualSendAt,omitempty"`
	ResolvedGroup        *ResolvedGroup `json:"resolvedGroup,omitempty"`
	DeliveryType         DeliveryType   `json:"deliveryType"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
	Revisions            []Revision     `json:"revisions"`
	StatusHistory        []StatusEntry  `json:"statusHistory"`
}

// AppendRevision snapshots the job's current editable content as a new
// revision. Revision IDs are strictly sequential starting at 1.
func (j *Job) AppendRevision(source RevisionSource, at time.Time) {
	j.Revisions = append(j.Revisions, Revision{
		RevisionID: len(j.Revisions) + 1,
		Timestamp:  at,
		Source:     source,
		Data: RevisionData{
			RowID:       j.RowID,
			MessageText: j.MessageText,
			ScheduledAt: j.ScheduledAt,
			GroupJID:    j.GroupJID,
			GroupName:   j.GroupName,
			Enabled:     j.Enabled,
		},
	})
}

// SetStatus transitions the job and appends a status history entry.
func (j *Job) SetStatus(status JobStatus, reason string, at time.Time) {
	j.Status = status
	j.StatusReason = reason
	j.UpdatedAt = at
	j.StatusHistory = append(j.StatusHistory, StatusEntry{
		Status:    status,
		Timestamp: at,
		Reason:    reason,
	})
}

// Clone returns a deep copy safe to hand outside the engine.
func (j *Job) Clone() *Job {
	c := *j
	if j.ActualSendAt != nil {
		t := *j.ActualSendAt
		c.ActualSendAt = &t
	}
	if j.ResolvedGroup != nil {
		g := *j.ResolvedGroup
		c.ResolvedGroup = &g
	}
	c.Revisions = append([]Revision(nil), j.Revisions...)
	c.StatusHistory = append([]StatusEntry(nil), j.StatusHistory...)
	return &c
}

// JobSpec is a normalized, validated specification for creating a job.
type JobSpec struct {
	RowID       string    `json:"rowId,omitempty"`
	MessageText string    `json:"messageText"`
	ScheduledAt time.Time `json:"scheduledAt"`
	GroupJID    string    `json:"groupJid,omitempty"`
	GroupName   string    `json:"groupName,omitempty"`
	Enabled     bool      `json:"enabled"`
}

// Settings holds the global, mutable engine settings.
type Settings struct {
	RandomDelayMaxMinutes int `json:"randomDelayMaxMinutes"`
}

// QueueState is the single persisted aggregate. NextID is strictly
// increasing and never reused, even after deletion.
type QueueState struct {
	NextID   int64    `json:"nextId"`
	Settings Settings `json:"settings"`
	Jobs     []*Job   `json:"jobs"`
}

// DefaultQueueState returns the empty state used on first start and as the
// fallback when a snapshot cannot be read.
func DefaultQueueState() *QueueState {
	return &QueueState{
		NextID:   1,
		Settings: Settings{RandomDelayMaxMinutes: constants.DefaultRandomDelayMaxMinutes},
		Jobs:     []*Job{},
	}
}
