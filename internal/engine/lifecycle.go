package engine

import (
	"context"
	"time"

	"groupcast/internal/constants"
	"groupcast/internal/errors"
	"groupcast/internal/importer"
	"groupcast/internal/metrics"
	"groupcast/internal/models"
	"groupcast/internal/validation"

	"github.com/sirupsen/logrus"
)

// ImportReport is the user-visible outcome of a batch import: a count of
// created jobs plus the per-row errors. A bad row never aborts the batch.
type ImportReport struct {
	CreatedCount int                 `json:"createdCount"`
	Jobs         []*models.Job       `json:"jobs"`
	Errors       []importer.RowError `json:"errors"`
}

// Import validates every row independently and creates jobs for the valid
// ones. Source tags the revisions' provenance (csv_upload or bulk_paste).
func (e *Engine) Import(ctx context.Context, rows []map[string]interface{}, source models.RevisionSource) (*ImportReport, error) {
	result := importer.NormalizeRows(rows, e.clock.Now())

	jobs, err := e.CreateJobs(ctx, result.Specs, source)
	if err != nil {
		return nil, err
	}

	metrics.GetRegistry().AddToCounter("groupcast_import_rows_rejected_total", float64(len(result.Errors)), nil, "Rows rejected during batch import")

	return &ImportReport{
		CreatedCount: len(jobs),
		Jobs:         jobs,
		Errors:       result.Errors,
	}, nil
}

// validateSpec applies the creation-time invariants. Import rows pass the
// same checks per-row upstream; manual entry has no earlier gate.
func validateSpec(spec models.JobSpec, now time.Time) error {
	if err := validation.ValidateMessageText(spec.MessageText); err != nil {
		return err
	}
	if err := validation.ValidateRowID(spec.RowID); err != nil {
		return err
	}
	if spec.GroupJID == "" && spec.GroupName == "" {
		return errors.NewValidationError("group", "", "one of groupJid or groupName is required")
	}
	if spec.GroupJID != "" {
		if err := validation.ValidateGroupJID(spec.GroupJID); err != nil {
			return err
		}
	}
	if spec.ScheduledAt.IsZero() {
		return errors.NewValidationError("scheduledAt", "", "scheduledAt is required")
	}
	if !spec.ScheduledAt.After(now.Add(-constants.ScheduleGraceSeconds * time.Second)) {
		return errors.NewValidationError("scheduledAt", spec.ScheduledAt.String(), "must be in the future")
	}
	return nil
}

// CreateJobs creates one uploaded job per spec and persists the batch. Every
// spec is validated before any job is created; one bad spec rejects the call.
func (e *Engine) CreateJobs(ctx context.Context, specs []models.JobSpec, source models.RevisionSource) ([]*models.Job, error) {
	if len(specs) == 0 {
		return []*models.Job{}, nil
	}

	e.mu.Lock()
	now := e.clock.Now()
	for _, spec := range specs {
		if err := validateSpec(spec, now); err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}
	created := make([]*models.Job, 0, len(specs))
	for _, spec := range specs {
		job := e.store.Create(spec, source, models.DeliveryTypeScheduled, models.JobStatusUploaded, "Uploaded", now)
		created = append(created, job.Clone())
	}
	err := e.store.Save(ctx)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}

	metrics.GetRegistry().AddToCounter("groupcast_jobs_created_total", float64(len(created)), nil, "Jobs created")
	e.publish(models.EventJobsCreated, created)
	return created, nil
}

// CreateJob creates a single job from manual entry.
func (e *Engine) CreateJob(ctx context.Context, spec models.JobSpec) (*models.Job, error) {
	jobs, err := e.CreateJobs(ctx, []models.JobSpec{spec}, models.RevisionSourceManualEntry)
	if err != nil {
		return nil, err
	}
	return jobs[0], nil
}

// Compose sends immediately and records an already-sent job for audit
// symmetry with scheduled deliveries. On transport failure the record is
// created as failed.
func (e *Engine) Compose(ctx context.Context, spec models.JobSpec) (*models.Job, error) {
	if err := validation.ValidateMessageText(spec.MessageText); err != nil {
		return nil, err
	}
	if spec.GroupJID == "" && spec.GroupName == "" {
		return nil, errors.NewValidationError("group", "", "one of groupJid or groupName is required")
	}

	result, sendErr := e.transport.Send(ctx, SendTarget{JID: spec.GroupJID, Name: spec.GroupName}, spec.MessageText)

	e.mu.Lock()
	now := e.clock.Now()
	if spec.ScheduledAt.IsZero() {
		spec.ScheduledAt = now
	}

	var job *models.Job
	if sendErr != nil {
		job = e.store.Create(spec, models.RevisionSourceCompose, models.DeliveryTypeCompose, models.JobStatusFailed, sendErr.Error(), now)
	} else {
		job = e.store.Create(spec, models.RevisionSourceCompose, models.DeliveryTypeCompose, models.JobStatusSent, "Sent", now)
		sentAt := now
		job.ActualSendAt = &sentAt
		if result != nil {
			group := result.Group
			job.ResolvedGroup = &group
		}
	}
	clone := job.Clone()
	err := e.store.Save(ctx)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if sendErr != nil {
		metrics.GetRegistry().IncrementCounter("groupcast_sends_failed_total", nil, "Failed sends")
	} else {
		metrics.GetRegistry().IncrementCounter("groupcast_sends_total", nil, "Successful sends")
	}

	e.publish(models.EventJobsCreated, []*models.Job{clone})
	if sendErr != nil {
		return clone, errors.Wrap(sendErr, errors.ErrCodeSendFailed, "compose send failed")
	}
	return clone, nil
}

// EnqueueJobs moves the listed jobs into the scheduling workflow and arms
// their timers. Disabled jobs fail fast. Unknown ids and sent jobs are
// skipped silently.
func (e *Engine) EnqueueJobs(ctx context.Context, ids []int64) ([]*models.Job, error) {
	e.mu.Lock()
	now := e.clock.Now()
	updated := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := e.store.Get(id)
		if err != nil {
			continue
		}
		if !job.Status.IsMutable() {
			continue
		}

		if !job.Enabled {
			job.SetStatus(models.JobStatusFailed, "Job disabled", now)
			updated = append(updated, job.Clone())
			continue
		}

		job.SetStatus(models.JobStatusQueued, "Enqueued", now)
		job.SetStatus(models.JobStatusScheduled, "Scheduled", now)
		e.armTimerLocked(job)
		updated = append(updated, job.Clone())
	}
	err := e.saveIfChangedLocked(ctx, len(updated) > 0)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	e.publishUpdated(updated)
	return updated, nil
}

// PauseJobs returns the listed jobs to uploaded and clears their timers.
func (e *Engine) PauseJobs(ctx context.Context, ids []int64) ([]*models.Job, error) {
	e.mu.Lock()
	now := e.clock.Now()
	updated := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := e.store.Get(id)
		if err != nil {
			continue
		}
		if !job.Status.IsMutable() {
			continue
		}

		e.clearTimerLocked(id)
		job.SetStatus(models.JobStatusUploaded, "Paused", now)
		updated = append(updated, job.Clone())
	}
	err := e.saveIfChangedLocked(ctx, len(updated) > 0)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	e.publishUpdated(updated)
	return updated, nil
}

// CancelJobs cancels the listed jobs and clears their timers. Sent and
// already-cancelled jobs are skipped so the history records each cancel
// once. A cancel cannot abort a send already in flight; the execution path
// re-checks the status before the send commits.
func (e *Engine) CancelJobs(ctx context.Context, ids []int64) ([]*models.Job, error) {
	e.mu.Lock()
	now := e.clock.Now()
	updated := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := e.store.Get(id)
		if err != nil {
			continue
		}
		if job.Status == models.JobStatusSent || job.Status == models.JobStatusCancelled {
			continue
		}

		e.clearTimerLocked(id)
		job.SetStatus(models.JobStatusCancelled, "Cancelled", now)
		updated = append(updated, job.Clone())
	}
	err := e.saveIfChangedLocked(ctx, len(updated) > 0)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	e.publishUpdated(updated)
	return updated, nil
}

// DeleteJobs removes the listed jobs and releases their timers. Unknown ids
// are skipped without error; ids are never reused afterwards.
func (e *Engine) DeleteJobs(ctx context.Context, ids []int64) ([]int64, error) {
	e.mu.Lock()
	for _, id := range ids {
		e.clearTimerLocked(id)
	}
	deleted := e.store.Delete(ids)
	err := e.saveIfChangedLocked(ctx, len(deleted) > 0)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		e.publish(models.EventJobsDeleted, deleted)
	}
	return deleted, nil
}

// JobEdit carries the fields an edit may change; nil means unchanged.
type JobEdit struct {
	RowID       *string
	MessageText *string
	ScheduledAt *time.Time
	GroupJID    *string
	GroupName   *string
	Enabled     *bool
}

// EditJob applies an edit and appends a new revision. Editing a sent job is
// a deliberate special case: the historical record is superseded, actualSendAt
// and randomDelayAppliedMs reset, and the job returns to uploaded to re-enter
// the scheduling workflow.
func (e *Engine) EditJob(ctx context.Context, id int64, edit JobEdit, source models.RevisionSource) (*models.Job, error) {
	e.mu.Lock()

	job, err := e.store.Get(id)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	now := e.clock.Now()
	if edit.MessageText != nil {
		if err := validation.ValidateMessageText(*edit.MessageText); err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}
	if edit.ScheduledAt != nil {
		if !edit.ScheduledAt.After(now.Add(-constants.ScheduleGraceSeconds * time.Second)) {
			e.mu.Unlock()
			return nil, errors.NewValidationError("scheduledAt", edit.ScheduledAt.String(), "must be in the future")
		}
	}
	if edit.GroupJID != nil && *edit.GroupJID != "" {
		if err := validation.ValidateGroupJID(*edit.GroupJID); err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}

	clone, err := e.applyEditLocked(ctx, job, edit, source, now)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	e.publish(models.EventJobUpdated, clone)
	return clone, nil
}

// applyEditLocked mutates the job, records the revision, and re-arms the
// timer when the job stays pending. Caller holds e.mu and has validated.
func (e *Engine) applyEditLocked(ctx context.Context, job *models.Job, edit JobEdit, source models.RevisionSource, now time.Time) (*models.Job, error) {
	wasSent := job.Status == models.JobStatusSent

	if edit.RowID != nil {
		job.RowID = *edit.RowID
	}
	if edit.MessageText != nil {
		job.MessageText = *edit.MessageText
	}
	if edit.ScheduledAt != nil {
		job.ScheduledAt = *edit.ScheduledAt
	}
	if edit.GroupJID != nil {
		job.GroupJID = *edit.GroupJID
	}
	if edit.GroupName != nil {
		job.GroupName = *edit.GroupName
	}
	if edit.Enabled != nil {
		job.Enabled = *edit.Enabled
	}

	job.UpdatedAt = now
	job.AppendRevision(source, now)

	if wasSent {
		job.ActualSendAt = nil
		job.RandomDelayAppliedMs = 0
		job.SetStatus(models.JobStatusUploaded, "Edited after send, re-entering workflow", now)
	} else if job.Status == models.JobStatusScheduled || job.Status == models.JobStatusQueued {
		e.armTimerLocked(job)
	}

	clone := job.Clone()
	if err := e.store.Save(ctx); err != nil {
		return nil, err
	}
	return clone, nil
}

// RandomizeJobTimes replaces scheduledAt with a uniformly random instant in
// [start, end] for every listed job still in the mutable set. Each change
// routes through the edit path, so a revision is recorded and pending timers
// re-arm.
func (e *Engine) RandomizeJobTimes(ctx context.Context, ids []int64, start, end time.Time) ([]*models.Job, error) {
	if end.Before(start) {
		return nil, errors.NewGuardError("randomize window end must not precede start")
	}

	window := end.Sub(start)

	e.mu.Lock()
	now := e.clock.Now()
	updated := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := e.store.Get(id)
		if err != nil {
			continue
		}
		if !job.Status.IsMutable() {
			continue
		}

		offset := time.Duration(0)
		if window > 0 {
			offset = time.Duration(e.randInt63n(int64(window) + 1))
		}
		newTime := start.Add(offset)

		clone, err := e.applyEditLocked(ctx, job, JobEdit{ScheduledAt: &newTime}, models.RevisionSourceRandomizeTimes, now)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		updated = append(updated, clone)
	}
	e.mu.Unlock()

	e.publishUpdated(updated)
	return updated, nil
}

func (e *Engine) saveIfChangedLocked(ctx context.Context, changed bool) error {
	if !changed {
		return nil
	}
	return e.store.Save(ctx)
}

func (e *Engine) publishUpdated(jobs []*models.Job) {
	if len(jobs) == 0 {
		return
	}
	e.publish(models.EventJobsUpdated, jobs)
	e.logger.WithFields(logrus.Fields{"count": len(jobs)}).Debug("Published job updates")
}
