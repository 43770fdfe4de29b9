package store

import (
	"context"
	"time"

	"groupcast/internal/constants"
	"groupcast/internal/errors"
	"groupcast/internal/models"
	"groupcast/internal/retry"

	"github.com/sirupsen/logrus"
)

// Store owns the in-memory QueueState and writes it through to the
// persistence backend after every mutation. The store itself does no
// locking; the engine serializes all access to it.
type Store struct {
	persistence Persistence
	backoff     *retry.Backoff
	logger      *logrus.Logger
	state       *models.QueueState
}

func New(persistence Persistence, logger *logrus.Logger) *Store {
	return &Store{
		persistence: persistence,
		backoff: retry.NewBackoff(retry.BackoffConfig{
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			MaxAttempts:  constants.DefaultPersistRetryAttempts,
			Jitter:       true,
		}),
		logger: logger,
		state:  models.DefaultQueueState(),
	}
}

// Load reads the persisted snapshot. A missing snapshot starts empty; a
// malformed or unreadable one degrades to the default empty state rather
// than failing startup.
func (s *Store) Load() {
	state, err := s.persistence.Load()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load queue state, starting with empty state")
		s.state = models.DefaultQueueState()
		return
	}
	if state == nil {
		s.state = models.DefaultQueueState()
		return
	}

	normalizeState(state)
	s.state = state
}

// normalizeState fills defaults for fields added after a snapshot was
// written, so old snapshots load safely.
func normalizeState(state *models.QueueState) {
	if state.Jobs == nil {
		state.Jobs = []*models.Job{}
	}
	maxID := int64(0)
	for _, job := range state.Jobs {
		if job.Revisions == nil {
			job.Revisions = []models.Revision{}
		}
		if job.StatusHistory == nil {
			job.StatusHistory = []models.StatusEntry{}
		}
		if job.DeliveryType == "" {
			job.DeliveryType = models.DeliveryTypeScheduled
		}
		if job.ID > maxID {
			maxID = job.ID
		}
	}
	// NextID must stay strictly above every id ever issued
	if state.NextID <= maxID {
		state.NextID = maxID + 1
	}
	if state.NextID < 1 {
		state.NextID = 1
	}
}

// Save writes the full state through to persistence, retrying transient
// failures with backoff. A final failure is surfaced as a distinguishable
// persistence error instead of being silently dropped.
func (s *Store) Save(ctx context.Context) error {
	err := s.backoff.Retry(ctx, func() error {
		return s.persistence.Save(s.state)
	})
	if err != nil {
		return errors.NewPersistenceError("save", err)
	}
	return nil
}

// Settings returns the current global settings.
func (s *Store) Settings() models.Settings {
	return s.state.Settings
}

// SetSettings replaces the global settings. The caller validates first.
func (s *Store) SetSettings(settings models.Settings) {
	s.state.Settings = settings
}

// Jobs returns the live job list, ordered by creation.
func (s *Store) Jobs() []*models.Job {
	return s.state.Jobs
}

// Get returns the job with the given id or a JOB_NOT_FOUND error.
func (s *Store) Get(id int64) (*models.Job, error) {
	for _, job := range s.state.Jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return nil, errors.NewJobNotFoundError(id)
}

// Create assigns the next id and appends a new job with its initial status
// and revision #1. Ids are monotonically increasing and never reused, even
// after deletion.
func (s *Store) Create(spec models.JobSpec, source models.RevisionSource, delivery models.DeliveryType, initialStatus models.JobStatus, reason string, now time.Time) *models.Job {
	job := &models.Job{
		ID:            s.state.NextID,
		RowID:         spec.RowID,
		MessageText:   spec.MessageText,
		ScheduledAt:   spec.ScheduledAt,
		GroupJID:      spec.GroupJID,
		GroupName:     spec.GroupName,
		Enabled:       spec.Enabled,
		DeliveryType:  delivery,
		CreatedAt:     now,
		UpdatedAt:     now,
		Revisions:     []models.Revision{},
		StatusHistory: []models.StatusEntry{},
	}
	s.state.NextID++

	job.SetStatus(initialStatus, reason, now)
	job.AppendRevision(source, now)

	s.state.Jobs = append(s.state.Jobs, job)
	return job
}

// Delete removes the listed jobs and reports which ids actually existed.
// Unknown ids are skipped silently.
func (s *Store) Delete(ids []int64) []int64 {
	requested := make(map[int64]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}

	deleted := make([]int64, 0, len(ids))
	kept := s.state.Jobs[:0]
	for _, job := range s.state.Jobs {
		if requested[job.ID] {
			deleted = append(deleted, job.ID)
			continue
		}
		kept = append(kept, job)
	}
	s.state.Jobs = kept

	return deleted
}

// Close releases the persistence backend.
func (s *Store) Close() error {
	return s.persistence.Close()
}
