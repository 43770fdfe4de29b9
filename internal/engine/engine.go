package engine

import (
	"context"
	"sync"

	"groupcast/internal/models"
	"groupcast/internal/store"
	"groupcast/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SendTarget identifies the group to deliver to. JID is preferred when both
// are set; the transport resolves a name to a concrete group.
type SendTarget struct {
	JID  string
	Name string
}

// SendResult is the transport's confirmation of a delivered message.
type SendResult struct {
	Group models.ResolvedGroup
}

// Transport is the external message-sending collaborator. It must be
// idempotent-safe to retry; the engine itself never auto-retries, failed
// jobs require an explicit re-enqueue.
type Transport interface {
	Send(ctx context.Context, target SendTarget, text string) (*SendResult, error)
}

// Publisher receives structured change events, fire-and-forget.
type Publisher interface {
	Publish(event models.Event)
}

// Engine is the message post scheduling engine: a stateful job queue with a
// lifecycle state machine, one timer per pending job, durable persistence
// and audit trails. All collaborators are injected at construction so tests
// run without real timers, disk, or network.
type Engine struct {
	mu        sync.Mutex
	store     *store.Store
	transport Transport
	clock     Clock
	publisher Publisher
	logger    *logrus.Logger

	// timers is owned exclusively by the scheduler methods; lifetime of an
	// entry is tied 1:1 to "job currently pending".
	timers map[int64]TimerHandle

	// randInt63n draws a uniform value in [0, n); overridden in tests.
	randInt63n func(n int64) int64

	execCtx    context.Context
	execCancel context.CancelFunc
	stopped    bool
}

func New(st *store.Store, transport Transport, clock Clock, publisher Publisher, logger *logrus.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:      st,
		transport:  transport,
		clock:      clock,
		publisher:  publisher,
		logger:     logger,
		timers:     make(map[int64]TimerHandle),
		randInt63n: secureInt63n,
		execCtx:    ctx,
		execCancel: cancel,
	}
}

// Start loads the persisted state and re-arms timers for every job that was
// pending when the engine last stopped. Overdue jobs fire immediately.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Load()

	recovered := 0
	for _, job := range e.store.Jobs() {
		if job.Status == models.JobStatusScheduled || job.Status == models.JobStatusQueued {
			e.armTimerLocked(job)
			recovered++
		}
	}

	e.logger.WithFields(logrus.Fields{
		"jobs":      len(e.store.Jobs()),
		"recovered": recovered,
	}).Info("Engine started")
}

// Stop clears every timer without mutating job status. A send already in
// flight is allowed to finish; no new executions begin.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	e.stopped = true
	e.stopAllTimersLocked()
	e.execCancel()
	e.logger.Info("Engine stopped")
}

// ListJobs returns deep copies of every job, ordered by creation.
func (e *Engine) ListJobs() []*models.Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	jobs := e.store.Jobs()
	out := make([]*models.Job, len(jobs))
	for i, job := range jobs {
		out[i] = job.Clone()
	}
	return out
}

// GetJob returns a deep copy of one job or a JOB_NOT_FOUND error.
func (e *Engine) GetJob(id int64) (*models.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// Settings returns the current global settings.
func (e *Engine) Settings() models.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Settings()
}

// UpdateSettings replaces the global settings. An out-of-range value is a
// guard violation: stored settings stay unchanged and an error is returned.
func (e *Engine) UpdateSettings(ctx context.Context, settings models.Settings) error {
	e.mu.Lock()

	if err := validation.ValidateRandomDelayMaxMinutes(settings.RandomDelayMaxMinutes); err != nil {
		e.mu.Unlock()
		return err
	}

	e.store.SetSettings(settings)
	err := e.store.Save(ctx)
	e.mu.Unlock()

	if err != nil {
		return err
	}

	e.publish(models.EventSettingsUpdated, settings)
	return nil
}

func (e *Engine) publish(eventType models.EventType, payload interface{}) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(models.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: e.clock.Now(),
		Payload:   payload,
	})
}
