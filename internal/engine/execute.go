package engine

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"groupcast/internal/metrics"
	"groupcast/internal/models"
	"groupcast/internal/privacy"
	"groupcast/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// executeJob runs when a job's timer fires. The status is re-checked under
// the lock first, guarding against a cancel that raced the timer. Jitter is
// drawn once from the settings snapshotted at this moment; the setting is
// never re-read mid-flight. Cancellation is cooperative: it is checked again
// after the jitter delay, just before the send commits, and is ignored once
// the send has started.
func (e *Engine) executeJob(ctx context.Context, id int64) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	delete(e.timers, id)

	job, err := e.store.Get(id)
	if err != nil {
		e.mu.Unlock()
		return
	}
	if job.Status != models.JobStatusScheduled && job.Status != models.JobStatusQueued {
		e.mu.Unlock()
		return
	}

	now := e.clock.Now()
	log := e.logger.WithFields(logrus.Fields{"job_id": id})

	if !job.Enabled {
		job.SetStatus(models.JobStatusFailed, "Job disabled", now)
		clone := job.Clone()
		if saveErr := e.store.Save(ctx); saveErr != nil {
			log.WithError(saveErr).Error("Failed to persist disabled-job failure")
		}
		e.mu.Unlock()

		metrics.GetRegistry().IncrementCounter("groupcast_sends_failed_total", nil, "Failed sends")
		e.publish(models.EventJobUpdated, clone)
		return
	}

	// Snapshot the shared setting once for this execution
	maxMinutes := e.store.Settings().RandomDelayMaxMinutes
	var jitterMs int64
	if maxMinutes > 0 {
		jitterMs = e.randInt63n(int64(maxMinutes)*60000 + 1)
	}

	job.RandomDelayAppliedMs = jitterMs
	job.SetStatus(models.JobStatusQueued, "Applying random delay before send", now)
	clone := job.Clone()
	if saveErr := e.store.Save(ctx); saveErr != nil {
		log.WithError(saveErr).Error("Failed to persist pre-send state")
	}
	e.mu.Unlock()

	e.publish(models.EventJobUpdated, clone)

	spanCtx, span := tracing.StartSpan(ctx, "engine.executeJob",
		attribute.Int64("job.id", id),
		attribute.Int64("job.jitter_ms", jitterMs),
	)
	defer span.End()

	if err := e.clock.Sleep(spanCtx, time.Duration(jitterMs)*time.Millisecond); err != nil {
		log.WithError(err).Warn("Jitter delay interrupted, job left queued")
		return
	}

	e.mu.Lock()
	job, err = e.store.Get(id)
	if err != nil || e.stopped {
		e.mu.Unlock()
		return
	}
	if job.Status == models.JobStatusCancelled {
		// Cancelled during the jitter delay; the send never commits
		e.mu.Unlock()
		log.Info("Job cancelled before send committed")
		return
	}
	target := SendTarget{JID: job.GroupJID, Name: job.GroupName}
	text := job.MessageText
	e.mu.Unlock()

	log.WithFields(logrus.Fields{
		"group":   privacy.MaskGroupJID(target.JID),
		"preview": privacy.MessagePreview(text),
	}).Debug("Sending message")

	start := e.clock.Now()
	result, sendErr := e.transport.Send(spanCtx, target, text)
	metrics.RecordTimer("groupcast_send_duration", e.clock.Now().Sub(start), nil, "Transport send duration")

	e.mu.Lock()
	job, err = e.store.Get(id)
	if err != nil {
		e.mu.Unlock()
		return
	}
	now = e.clock.Now()

	if sendErr != nil {
		tracing.RecordError(spanCtx, sendErr)
		job.SetStatus(models.JobStatusFailed, sendErr.Error(), now)
		log.WithError(sendErr).Error("Job send failed")
	} else {
		sentAt := now
		job.ActualSendAt = &sentAt
		if result != nil {
			group := result.Group
			job.ResolvedGroup = &group
		}
		job.SetStatus(models.JobStatusSent, "Sent", now)
		log.WithField("jitter_ms", jitterMs).Info("Job sent")
	}

	clone = job.Clone()
	if saveErr := e.store.Save(ctx); saveErr != nil {
		log.WithError(saveErr).Error("Failed to persist send outcome")
	}
	e.mu.Unlock()

	if sendErr != nil {
		metrics.GetRegistry().IncrementCounter("groupcast_sends_failed_total", nil, "Failed sends")
	} else {
		metrics.GetRegistry().IncrementCounter("groupcast_sends_total", nil, "Successful sends")
	}
	e.publish(models.EventJobUpdated, clone)
}

// secureInt63n draws a uniform value in [0, n) from crypto/rand.
func secureInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return time.Now().UnixNano() % n
	}
	return v.Int64()
}
